package logging

import (
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RunLogger collects the resolved input source, result sink, portal
// profile, and feature flags of one batch run, then emits a single
// structured zerolog event summarising them. One event with everything in
// it beats grepping the run log for scattered config lines.
type RunLogger struct {
	runID string

	inputs   map[string]string
	sinks    map[string]string
	portal   map[string]string
	features map[string]bool
}

// NewRunLogger creates a RunLogger for the given run ID.
func NewRunLogger(runID string) *RunLogger {
	return &RunLogger{
		runID:    runID,
		inputs:   make(map[string]string),
		sinks:    make(map[string]string),
		portal:   make(map[string]string),
		features: make(map[string]bool),
	}
}

// Input registers where order records are read from.
func (r *RunLogger) Input(label, value string) *RunLogger {
	r.inputs[label] = value
	return r
}

// Sink registers where results are appended.
func (r *RunLogger) Sink(label, value string) *RunLogger {
	r.sinks[label] = value
	return r
}

// Portal registers a non-sensitive portal profile value. Credentials are
// never registered here.
func (r *RunLogger) Portal(key, value string) *RunLogger {
	r.portal[key] = value
	return r
}

// Feature registers a boolean run flag (e.g. "dryRun", "headless").
func (r *RunLogger) Feature(name string, enabled bool) *RunLogger {
	r.features[name] = enabled
	return r
}

// EnvOrDefault returns the value of the named environment variable, or
// defaultVal if the variable is empty or unset.
func EnvOrDefault(envVar, defaultVal string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return defaultVal
}

// Log emits a single structured INFO event with all collected information.
func (r *RunLogger) Log() {
	evt := log.Info().
		Dict("run", zerolog.Dict().
			Str("id", r.runID).
			Str("goVersion", runtime.Version()).
			Str("arch", runtime.GOARCH).
			Str("logLevel", EnvOrDefault(levelEnvVar, "info")))

	if len(r.inputs) > 0 {
		evt = evt.Dict("input", dictFromMap(r.inputs))
	}
	if len(r.sinks) > 0 {
		evt = evt.Dict("sink", dictFromMap(r.sinks))
	}
	if len(r.portal) > 0 {
		evt = evt.Dict("portal", dictFromMap(r.portal))
	}
	if len(r.features) > 0 {
		d := zerolog.Dict()
		for k, v := range r.features {
			d = d.Bool(k, v)
		}
		evt = evt.Dict("features", d)
	}

	evt.Msg("Batch run starting")
}

// dictFromMap converts a map[string]string into a zerolog.Event (Dict).
func dictFromMap(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for k, v := range m {
		d = d.Str(k, v)
	}
	return d
}
