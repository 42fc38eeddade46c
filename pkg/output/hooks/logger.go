// Package hooks provides real-time event consumers for the pipeline
// dispatcher: structured logging, chat notifications, Prometheus
// metrics, and OpenTelemetry trace export.
package hooks

import (
	"context"
	"log/slog"

	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

// orDefault returns l if non-nil, otherwise slog.Default().
func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// Compile-time interface check.
var _ dispatcher.Hook = (*LoggerHook)(nil)

// LoggerHook writes every event to structured logs. It is the always-on
// hook: other integrations are optional, the log stream is not.
type LoggerHook struct {
	logger *slog.Logger
}

// NewLoggerHook creates a logging hook.
func NewLoggerHook(logger *slog.Logger) *LoggerHook {
	return &LoggerHook{logger: orDefault(logger)}
}

// EventTypes returns nil: the logger receives all events.
func (h *LoggerHook) EventTypes() []events.EventType { return nil }

// OnEvent logs the event at a level matching its weight.
func (h *LoggerHook) OnEvent(_ context.Context, event events.Event) error {
	log := h.logger.With("job", event.JobID())

	switch e := event.(type) {
	case *events.StartEvent:
		log.Info("run started",
			"workflow", e.Workflow,
			"trigger", e.Trigger,
			"targets", e.TargetCount,
			"concurrency", e.Concurrency)
	case *events.ProgressEvent:
		log.Debug("progress",
			"phase", e.Phase,
			"completed", e.Completed,
			"total", e.Total,
			"failed", e.Failed)
	case *events.HostEvent:
		log.Info("host recorded", "host", e.Host, "alive", e.Alive, "ips", len(e.IPs))
	case *events.FindingEvent:
		log.Info("finding recorded",
			"host", e.Finding.HostID,
			"source", e.Finding.Source,
			"title", e.Finding.Title,
			"severity", e.Severity)
	case *events.ErrorEvent:
		if e.Fatal {
			log.Error("run error", "target", e.Target, "error", e.Message)
		} else {
			log.Warn("item error", "target", e.Target, "error", e.Message)
		}
	case *events.SummaryEvent:
		log.Info("run summary", "workflow", e.Workflow, "duration_ms", e.DurationMS, "stats", e.Stats)
	case *events.CompleteEvent:
		if e.Success {
			log.Info("run complete")
		} else {
			log.Error("run failed", "error", e.Error)
		}
	default:
		log.Debug("event", "type", event.EventType())
	}
	return nil
}
