package report

import "context"

// Sink receives processing results. Append is called after every
// orchestration pass so progress survives a crash; Succeeded is read once
// at batch start for the idempotence filter.
type Sink interface {
	// Append writes results to the sink, preserving order.
	Append(ctx context.Context, results []Result) error

	// Succeeded returns the set of order numbers the sink already records
	// as processed (success or success-with-errors).
	Succeeded(ctx context.Context) (map[string]bool, error)
}
