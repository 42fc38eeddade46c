package events

import (
	"github.com/muralikrish9/cyberroomba/pkg/model"
)

// StartEvent is emitted when a stage run begins.
type StartEvent struct {
	BaseEvent
	Workflow    string `json:"workflow"`
	Trigger     string `json:"trigger,omitempty"`
	TargetCount int    `json:"target_count"`
	Concurrency int    `json:"concurrency"`
}

// NewStartEvent creates a start event for one stage run.
func NewStartEvent(jobID, workflow, trigger string, targets, concurrency int) *StartEvent {
	return &StartEvent{
		BaseEvent:   base(EventTypeStart, jobID),
		Workflow:    workflow,
		Trigger:     trigger,
		TargetCount: targets,
		Concurrency: concurrency,
	}
}

// ProgressEvent is a periodic completion update while a batch runs.
type ProgressEvent struct {
	BaseEvent
	Phase      string  `json:"phase"`
	Completed  int64   `json:"completed"`
	Total      int64   `json:"total"`
	Failed     int64   `json:"failed"`
	Percentage float64 `json:"percentage"`
	RatePerMin float64 `json:"rate_per_min"`
}

// NewProgressEvent creates a progress event.
func NewProgressEvent(jobID, phase string, completed, total, failed int64, ratePerMin float64) *ProgressEvent {
	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	return &ProgressEvent{
		BaseEvent:  base(EventTypeProgress, jobID),
		Phase:      phase,
		Completed:  completed,
		Total:      total,
		Failed:     failed,
		Percentage: pct,
		RatePerMin: ratePerMin,
	}
}

// HostEvent is emitted for each fused host record a recon run stores.
type HostEvent struct {
	BaseEvent
	Host  string           `json:"host"`
	Alive bool             `json:"alive"`
	IPs   []string         `json:"ips,omitempty"`
	Rec   model.HostRecord `json:"record"`
}

// NewHostEvent creates a host event from a stored record.
func NewHostEvent(jobID string, rec model.HostRecord) *HostEvent {
	return &HostEvent{
		BaseEvent: base(EventTypeHost, jobID),
		Host:      rec.Host,
		Alive:     rec.Alive,
		IPs:       rec.IPs,
		Rec:       rec,
	}
}

// FindingEvent is emitted for each normalized finding an attack run
// stores. Hooks use Severity for alert filtering.
type FindingEvent struct {
	BaseEvent
	Severity Severity      `json:"severity"`
	Finding  model.Finding `json:"finding"`
}

// NewFindingEvent creates a finding event.
func NewFindingEvent(jobID string, f model.Finding) *FindingEvent {
	return &FindingEvent{
		BaseEvent: base(EventTypeFinding, jobID),
		Severity:  f.Severity,
		Finding:   f,
	}
}

// ErrorEvent is emitted when an error occurs during a run. It covers
// both recoverable per-item failures and fatal run errors.
type ErrorEvent struct {
	BaseEvent
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
	Fatal   bool   `json:"fatal"`
}

// NewErrorEvent creates an error event.
func NewErrorEvent(jobID, target, message string, fatal bool) *ErrorEvent {
	return &ErrorEvent{
		BaseEvent: base(EventTypeError, jobID),
		Target:    target,
		Message:   message,
		Fatal:     fatal,
	}
}

// SummaryEvent carries end-of-run statistics.
type SummaryEvent struct {
	BaseEvent
	Workflow   string           `json:"workflow"`
	Stats      map[string]int64 `json:"stats,omitempty"`
	DurationMS int64            `json:"duration_ms"`
}

// NewSummaryEvent creates a summary event.
func NewSummaryEvent(jobID, workflow string, stats map[string]int64, durationMS int64) *SummaryEvent {
	return &SummaryEvent{
		BaseEvent:  base(EventTypeSummary, jobID),
		Workflow:   workflow,
		Stats:      stats,
		DurationMS: durationMS,
	}
}

// CompleteEvent is emitted when a run finishes, success or not.
type CompleteEvent struct {
	BaseEvent
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewCompleteEvent creates a complete event.
func NewCompleteEvent(jobID string, success bool, errMsg string) *CompleteEvent {
	return &CompleteEvent{
		BaseEvent: base(EventTypeComplete, jobID),
		Success:   success,
		Error:     errMsg,
	}
}
