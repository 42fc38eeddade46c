// Package output provides event writers for the dispatcher. The JSONL
// writer is the default persistence path: one JSON object per line,
// suitable for piping into jq or shipping to a log collector.
package output

import (
	"bufio"
	"io"
	"sync"

	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Writer = (*JSONLWriter)(nil)

// JSONLWriter serializes events as newline-delimited JSON.
type JSONLWriter struct {
	mu   sync.Mutex
	buf  *bufio.Writer
	out  io.Writer
	only map[events.EventType]bool
}

// NewJSONLWriter creates a writer emitting to out. With no types
// given, every event is written; otherwise only the listed types.
func NewJSONLWriter(out io.Writer, types ...events.EventType) *JSONLWriter {
	w := &JSONLWriter{
		buf: bufio.NewWriter(out),
		out: out,
	}
	if len(types) > 0 {
		w.only = make(map[events.EventType]bool, len(types))
		for _, t := range types {
			w.only[t] = true
		}
	}
	return w
}

// SupportsEvent reports whether this writer records the event type.
func (w *JSONLWriter) SupportsEvent(t events.EventType) bool {
	if w.only == nil {
		return true
	}
	return w.only[t]
}

// Write appends one event line.
func (w *JSONLWriter) Write(event events.Event) error {
	raw, err := jsonutil.Marshal(event)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.buf.Write(raw); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// Flush drains the buffer to the underlying writer.
func (w *JSONLWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// Close flushes and, when the underlying writer is a closer, closes it.
func (w *JSONLWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if c, ok := w.out.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
