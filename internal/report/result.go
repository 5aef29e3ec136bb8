// Package report defines per-record processing results and the sinks they
// are flushed to. Sinks also power the idempotence filter: orders already
// recorded as processed are excluded from later runs.
package report

import "time"

// Kind classifies a record's terminal outcome.
type Kind string

const (
	KindSuccess           Kind = "success"
	KindSuccessWithErrors Kind = "success-with-errors"
	KindSkipped           Kind = "skipped"
	KindError             Kind = "error"
)

// Result is one outcome for one order. Exactly one Result is appended per
// record per orchestration pass; retried records get a new Result each
// pass, never a silent overwrite.
type Result struct {
	OrderNo   string
	Kind      Kind
	Message   string
	Timestamp time.Time
}

// processed reports whether a result kind means the order must not be
// attempted again: the draft exists, even if the portal flagged its
// content.
func processed(k Kind) bool {
	return k == KindSuccess || k == KindSuccessWithErrors
}

// Summary aggregates a run for the final console report.
type Summary struct {
	Total      int
	Success    int
	WithErrors int
	Skipped    int
	Errors     int
}

// Count folds one result into the summary.
func (s *Summary) Count(r Result) {
	s.Total++
	switch r.Kind {
	case KindSuccess:
		s.Success++
	case KindSuccessWithErrors:
		s.WithErrors++
	case KindSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
}
