package domain

import "context"

// Result is the structured output of one classification: scenario-defined
// field names mapped to coerced values. Field order is supplied by the
// scenario's schema, not by the map.
type Result map[string]any

// Bool reads a boolean field, false when absent or mistyped.
func (r Result) Bool(name string) bool {
	v, ok := r[name].(bool)
	return ok && v
}

// String reads a string field, "" when absent or mistyped.
func (r Result) String(name string) string {
	v, _ := r[name].(string)
	return v
}

// Classifier maps message text to a structured verdict under one scenario.
// A failure to produce a parseable result is an error; callers treat it as a
// per-message skip, never as a batch abort.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
	Healthy(ctx context.Context) error
}
