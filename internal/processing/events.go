package processing

import "time"

// EventKind classifies progress events.
type EventKind string

const (
	EventRunStarted   EventKind = "run_started"
	EventStepStarted  EventKind = "step_started"
	EventProgress     EventKind = "progress"
	EventStepFinished EventKind = "step_finished"
	EventRunFinished  EventKind = "run_finished"
)

// Event is one progress notification.
type Event struct {
	Kind     EventKind `json:"kind"`
	BatchID  string    `json:"batch_id"`
	Step     int       `json:"step,omitempty"`
	StepName string    `json:"step_name,omitempty"`
	Message  string    `json:"message,omitempty"`
	Percent  float64   `json:"percent,omitempty"`
	Success  bool      `json:"success,omitempty"`
	Time     time.Time `json:"time"`
}

// EventSink receives events synchronously on the pipeline goroutine. Sinks
// that do slow work should hand events off to their own goroutine.
type EventSink func(Event)

// ChannelSink forwards events to ch without blocking; events are dropped when
// ch is full.
func ChannelSink(ch chan<- Event) EventSink {
	return func(evt Event) {
		select {
		case ch <- evt:
		default:
		}
	}
}
