// Package dispatcher provides central event routing for pipeline
// output. Stages emit events into the dispatcher, which fans them out
// to registered writers (files, console) and hooks (webhooks, metrics,
// traces). The dispatcher decouples event generation from consumption:
// a failing hook never fails the stage.
package dispatcher

import (
	"context"
	"sync"

	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

// Writer is the interface for output writers. Writers persist events
// to a destination such as a JSONL stream or the console.
type Writer interface {
	Write(event events.Event) error
	Flush() error
	Close() error

	// SupportsEvent returns true if the writer handles this event type.
	SupportsEvent(eventType events.EventType) bool
}

// Hook is the interface for real-time integrations such as chat
// notifications, metrics, or trace export.
type Hook interface {
	OnEvent(ctx context.Context, event events.Event) error

	// EventTypes returns the event types this hook handles. Nil or
	// empty means the hook receives all events.
	EventTypes() []events.EventType
}

// Dispatcher routes events to writers and hooks. Safe for concurrent
// use.
type Dispatcher struct {
	mu      sync.RWMutex
	writers []Writer
	hooks   []Hook

	async  bool
	hookWG sync.WaitGroup
}

// Config configures dispatcher behavior.
type Config struct {
	// Async runs each hook invocation in its own goroutine. Close
	// waits for in-flight hook calls.
	Async bool
}

// New creates an event dispatcher.
func New(cfg Config) *Dispatcher {
	return &Dispatcher{async: cfg.Async}
}

// RegisterWriter adds a writer.
func (d *Dispatcher) RegisterWriter(w Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writers = append(d.writers, w)
}

// RegisterHook adds a hook.
func (d *Dispatcher) RegisterHook(h Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks = append(d.hooks, h)
}

// Dispatch sends an event to every matching writer and hook. It
// returns nil even when individual consumers fail so the rest still
// receive the event.
func (d *Dispatcher) Dispatch(ctx context.Context, event events.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, w := range d.writers {
		if w.SupportsEvent(event.EventType()) {
			_ = w.Write(event)
		}
	}

	for _, h := range d.hooks {
		if !hookSupportsEvent(h, event.EventType()) {
			continue
		}
		if d.async {
			d.hookWG.Add(1)
			go func(hook Hook) {
				defer d.hookWG.Done()
				_ = hook.OnEvent(ctx, event)
			}(h)
		} else {
			_ = h.OnEvent(ctx, event)
		}
	}

	return nil
}

func hookSupportsEvent(h Hook, eventType events.EventType) bool {
	types := h.EventTypes()
	if len(types) == 0 {
		return true
	}
	for _, et := range types {
		if et == eventType {
			return true
		}
	}
	return false
}

// Flush flushes all registered writers.
func (d *Dispatcher) Flush() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, w := range d.writers {
		_ = w.Flush()
	}
	return nil
}

// Close waits for async hooks, then flushes and closes all writers.
func (d *Dispatcher) Close() error {
	d.hookWG.Wait()

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, w := range d.writers {
		_ = w.Flush()
		_ = w.Close()
	}
	return nil
}
