package registry

import (
	"fmt"
	"strings"

	"darkroom/internal/failure"
)

// Status is the lifecycle state of a registered batch.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

var transitions = map[Status][]Status{
	StatusActive:    {StatusCompleted, StatusArchived},
	StatusCompleted: {StatusArchived, StatusActive},
	StatusArchived:  {StatusActive},
}

// ParseStatus converts user input into a Status.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := transitions[status]; !ok {
		return "", failure.Wrap(failure.ErrInvalidTransition, "registry", "parse status",
			fmt.Sprintf("unknown status %q", raw), nil)
	}
	return status, nil
}

// CanTransition reports whether a batch may move from one status to another.
// Staying in the same status is always allowed.
func CanTransition(from, to Status) bool {
	if _, ok := transitions[to]; !ok {
		return false
	}
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
