// Package stage implements the pipeline workflows: recon fan-out,
// profile-driven attack scans, and CVE correlation passes. Each stage
// runs as one job with its own JobRun record, scheduler batch, and
// event stream.
package stage

import (
	"context"
	"log/slog"

	"github.com/muralikrish9/cyberroomba/pkg/duration"
	"github.com/muralikrish9/cyberroomba/pkg/output/dispatcher"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
	"github.com/muralikrish9/cyberroomba/pkg/store"
	"github.com/muralikrish9/cyberroomba/pkg/tools"
)

// ToolRunner is the adapter boundary stages invoke external tools
// through. *tools.Invoker satisfies it; tests substitute fakes.
type ToolRunner interface {
	Invoke(ctx context.Context, spec tools.Spec, jobID, target string, extra ...string) ([][]byte, error)
}

// Deps carries everything a stage needs, passed explicitly instead of
// reaching for globals. Store and Tools are required; the rest default
// sensibly when nil.
type Deps struct {
	Store  *store.Store
	Tools  ToolRunner
	Events *dispatcher.Dispatcher
	Logger *slog.Logger

	// Specs resolves a tool name to its invocation spec. Nil falls
	// back to the built-in table.
	Specs func(name string) (tools.Spec, bool)
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Deps) spec(name string) (tools.Spec, bool) {
	if d.Specs != nil {
		if s, ok := d.Specs(name); ok {
			return s, true
		}
	}
	s, ok := builtinSpecs[name]
	return s, ok
}

// publish dispatches an event when a dispatcher is wired; stages never
// block on missing observability.
func (d *Deps) publish(ctx context.Context, event events.Event) {
	if d.Events != nil {
		_ = d.Events.Dispatch(ctx, event)
	}
}

// builtinSpecs are the default invocations for the standard toolchain.
// A pipeline file overrides any of them by name.
var builtinSpecs = map[string]tools.Spec{
	"subfinder": {
		Name:      "subfinder",
		Binary:    "subfinder",
		Args:      []string{"-d", "{{target}}", "-silent", "-oJ"},
		Timeout:   duration.ToolEnumerate,
		JSONLines: true,
	},
	"dnsx": {
		Name:      "dnsx",
		Binary:    "dnsx",
		Args:      []string{"-l", "{{target}}", "-a", "-resp", "-silent", "-json"},
		Timeout:   duration.ToolEnumerate,
		JSONLines: true,
	},
	"httpx": {
		Name:      "httpx",
		Binary:    "httpx",
		Args:      []string{"-l", "{{target}}", "-title", "-server", "-tech-detect", "-silent", "-json"},
		Timeout:   duration.ToolEnumerate,
		JSONLines: true,
	},
	"naabu": {
		Name:      "naabu",
		Binary:    "naabu",
		Args:      []string{"-l", "{{target}}", "-top-ports", "1000", "-silent", "-json"},
		Timeout:   duration.ToolEnumerate,
		JSONLines: true,
	},
	"nuclei": {
		Name:      "nuclei",
		Binary:    "nuclei",
		Args:      []string{"-u", "{{target}}", "-jsonl", "-silent"},
		Timeout:   duration.ToolAttack,
		JSONLines: true,
	},
}
