package failure

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrExecution         = errors.New("execution error")
	ErrConfigCorruption  = errors.New("configuration corrupt")
	ErrContention        = errors.New("registry contention")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConfiguration     = errors.New("configuration error")
)

// Kind groups failures by the action a user should take.
type Kind string

const (
	// KindInput means the user must fix an input before trying again.
	KindInput Kind = "input"
	// KindRetry means the same operation may succeed if repeated.
	KindRetry Kind = "retry"
	// KindInternal covers everything that is neither.
	KindInternal Kind = "internal"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker. The marker should be one of the exported
// sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExecution
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to the user action it calls for.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrContention):
		return KindRetry
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrInvalidTransition):
		return KindInput
	default:
		return KindInternal
	}
}

// Retryable reports whether err is worth retrying unchanged.
func Retryable(err error) bool {
	return Classify(err) == KindRetry
}

// Hint returns a short user-facing next step for err.
func Hint(err error) string {
	switch Classify(err) {
	case KindRetry:
		return "retry the operation"
	case KindInput:
		return "fix the input and try again"
	default:
		return "check logs for details"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "operation failed"
	}
	return strings.Join(parts, ": ")
}
