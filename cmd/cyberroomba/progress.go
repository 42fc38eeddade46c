package main

import (
	"context"

	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
	"github.com/muralikrish9/cyberroomba/pkg/ui"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*progressHook)(nil)

// progressHook renders scheduler progress events as a live terminal
// line.
type progressHook struct {
	bar *ui.Progress
}

func newProgressHook(phase string) *progressHook {
	return &progressHook{bar: ui.NewProgress(phase)}
}

func (h *progressHook) EventTypes() []events.EventType {
	return []events.EventType{events.EventTypeProgress}
}

func (h *progressHook) OnEvent(_ context.Context, event events.Event) error {
	if e, ok := event.(*events.ProgressEvent); ok {
		h.bar.Update(e.Completed, e.Total, e.Failed)
	}
	return nil
}

func (h *progressHook) finish(completed, total, failed int64) {
	h.bar.Finish(completed, total, failed)
}

func errorPrefix() string {
	return ui.ErrorStyle.Render(ui.Icon("✗", "[x]")) + " "
}
