package failure_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"darkroom/internal/failure"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := failure.Wrap(failure.ErrExecution, "registry", "save", "write failed", base)
	if !errors.Is(err, failure.ErrExecution) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"registry", "save", "write failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerDefaultsToExecution(t *testing.T) {
	err := failure.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, failure.ErrExecution) {
		t.Fatalf("expected execution marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "operation failed") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want failure.Kind
	}{
		{"nil", nil, failure.KindInternal},
		{"contention", failure.Wrap(failure.ErrContention, "registry", "lock", "", nil), failure.KindRetry},
		{"validation", failure.Wrap(failure.ErrValidation, "step", "inputs", "missing", nil), failure.KindInput},
		{"not found", fmt.Errorf("outer: %w", failure.ErrNotFound), failure.KindInput},
		{"transition", failure.ErrInvalidTransition, failure.KindInput},
		{"corrupt", failure.ErrConfigCorruption, failure.KindInternal},
		{"plain", errors.New("io"), failure.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := failure.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
		})
	}
	if !failure.Retryable(failure.ErrContention) {
		t.Fatal("expected contention to be retryable")
	}
	if failure.Hint(failure.ErrContention) != "retry the operation" {
		t.Fatalf("unexpected hint %q", failure.Hint(failure.ErrContention))
	}
}
