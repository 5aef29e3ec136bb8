package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// levelEnvVar selects the global log level: debug, info, warn, error
// (default: info).
const levelEnvVar = "INVOICEBOT_LOG_LEVEL"

// Init initializes the global logger with configuration from environment variables.
func Init() {
	switch os.Getenv(levelEnvVar) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
