// Package events defines the event types emitted by pipeline stages.
// All events are designed for JSON serialization and webhook delivery.
//
// BaseEvent is embedded in every concrete event type; the dispatcher
// routes events by their EventType.
package events

import (
	"time"

	"github.com/muralikrish9/cyberroomba/pkg/finding"
)

// EventType represents the type of pipeline event.
type EventType string

const (
	// EventTypeStart indicates a stage run has started.
	EventTypeStart EventType = "start"
	// EventTypeProgress indicates a progress update during a run.
	EventTypeProgress EventType = "progress"
	// EventTypeHost indicates a fused host record was produced.
	EventTypeHost EventType = "host"
	// EventTypeFinding indicates a normalized finding was recorded.
	EventTypeFinding EventType = "finding"
	// EventTypeError indicates an error occurred.
	EventTypeError EventType = "error"
	// EventTypeSummary indicates end-of-run statistics.
	EventTypeSummary EventType = "summary"
	// EventTypeComplete indicates a run has finished.
	EventTypeComplete EventType = "complete"
)

// Severity is re-exported so hooks can filter without importing the
// finding package directly.
type Severity = finding.Severity

// Event is the base interface for all events.
type Event interface {
	EventType() EventType
	Timestamp() time.Time
	JobID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	Type EventType `json:"type"`
	Time time.Time `json:"timestamp"`
	Job  string    `json:"job_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() EventType { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// JobID returns the job run that produced this event.
func (e BaseEvent) JobID() string { return e.Job }

func base(t EventType, jobID string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now().UTC(), Job: jobID}
}
