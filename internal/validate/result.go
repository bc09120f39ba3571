package validate

import (
	"fmt"
	"strings"
)

// Result summarises a validation pass.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// OK returns a passing Result.
func OK() Result {
	return Result{Valid: true}
}

// Fail returns a failing Result carrying a single formatted error.
func Fail(format string, args ...any) Result {
	return Result{Valid: false, Errors: []string{fmt.Sprintf(format, args...)}}
}

// AddError records an error and marks the result invalid.
func (r *Result) AddError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a warning without affecting validity.
func (r *Result) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// FirstError returns the first recorded error, or a generic message when an
// invalid result carries none.
func (r Result) FirstError() string {
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	if !r.Valid {
		return "validation failed"
	}
	return ""
}

// Summary joins all errors into one line.
func (r Result) Summary() string {
	if r.Valid {
		return "valid"
	}
	if len(r.Errors) == 0 {
		return "validation failed"
	}
	return strings.Join(r.Errors, "; ")
}

// Merge concatenates errors and warnings and ANDs validity. Merge with no
// arguments is valid.
func Merge(results ...Result) Result {
	merged := Result{Valid: true}
	for _, r := range results {
		if !r.Valid {
			merged.Valid = false
		}
		merged.Errors = append(merged.Errors, r.Errors...)
		merged.Warnings = append(merged.Warnings, r.Warnings...)
	}
	return merged
}

// Strict promotes warnings to errors, used when validation.strict_mode is on.
func (r Result) Strict() Result {
	if len(r.Warnings) == 0 {
		return r
	}
	out := Result{Valid: false}
	out.Errors = append(out.Errors, r.Errors...)
	out.Errors = append(out.Errors, r.Warnings...)
	return out
}
