package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
)

// Progress renders batch progress to stderr. On a TTY it redraws a
// single live line; when piped it streams one plain line per update so
// logs stay readable.
type Progress struct {
	mu     sync.Mutex
	out    io.Writer
	tty    bool
	output *termenv.Output
	phase  string
	done   bool
}

// NewProgress creates a progress renderer for the given phase.
func NewProgress(phase string) *Progress {
	return &Progress{
		out:    os.Stderr,
		tty:    StderrIsTerminal(),
		output: termenv.NewOutput(os.Stderr),
		phase:  phase,
	}
}

// Update renders the current completion state.
func (p *Progress) Update(completed, total, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}

	pct := 0.0
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}
	line := fmt.Sprintf("%s %s: %d/%d (%.0f%%)", Icon("⏳", "[*]"), p.phase, completed, total, pct)
	if failed > 0 {
		line += fmt.Sprintf(", %d failed", failed)
	}

	if p.tty {
		p.output.ClearLine()
		fmt.Fprintf(p.out, "\r%s", line)
		return
	}
	fmt.Fprintln(p.out, line)
}

// Finish terminates the live line and prints the final state.
func (p *Progress) Finish(completed, total, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return
	}
	p.done = true

	if p.tty {
		p.output.ClearLine()
		fmt.Fprint(p.out, "\r")
	}
	icon := Icon("✓", "[+]")
	if failed > 0 {
		icon = Icon("⚠", "[!]")
	}
	fmt.Fprintf(p.out, "%s %s: %d/%d complete, %d failed\n", icon, p.phase, completed, total, failed)
}
