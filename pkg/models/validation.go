package models

import "reflect"

// ValidationResult is the structural validation outcome for an artifact.
type ValidationResult struct {
	// Valid is true iff the artifact parsed and produced zero errors.
	Valid bool `json:"valid"`

	// ItemCount is the number of items that parsed and validated.
	ItemCount int `json:"item_count"`

	// Errors holds "path: message" strings in artifact order. For jsonl
	// artifacts each entry is prefixed with its line number. Collection
	// stops at the validator's error budget with a stopped marker.
	Errors []string `json:"errors,omitempty"`

	// Sample holds the first parsed items (at most three), truncated so
	// the serialised sample never exceeds the sample byte budget.
	Sample []map[string]any `json:"sample,omitempty"`
}

// Equal reports whether two validation results are identical. Used to
// check that re-validating the same artifact is deterministic.
func (r *ValidationResult) Equal(other *ValidationResult) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Valid != other.Valid || r.ItemCount != other.ItemCount || len(r.Errors) != len(other.Errors) {
		return false
	}
	for i := range r.Errors {
		if r.Errors[i] != other.Errors[i] {
			return false
		}
	}
	if len(r.Sample) != len(other.Sample) {
		return false
	}
	for i := range r.Sample {
		if !reflect.DeepEqual(r.Sample[i], other.Sample[i]) {
			return false
		}
	}
	return true
}

// Severity classifies a domain validation issue.
type Severity string

const (
	// SeverityError blocks the run at the final gate.
	SeverityError Severity = "error"

	// SeverityWarning is surfaced but does not block.
	SeverityWarning Severity = "warning"
)

// CustomValidationError is a domain-specific validation issue reported by
// the pluggable semantic validators.
type CustomValidationError struct {
	// Path locates the offending element, e.g. "nodes[1].temp_id".
	Path string `json:"path"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Code is the stable machine-readable issue code.
	Code string `json:"code"`

	// Context carries structured details; array values are truncated to
	// five entries plus an ellipsis marker.
	Context map[string]any `json:"context,omitempty"`

	// Severity is error (blocking) or warning (non-blocking).
	Severity Severity `json:"severity"`
}
