package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/muralikrish9/cyberroomba/pkg/input"
	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/stage"
	"github.com/muralikrish9/cyberroomba/pkg/store"
	"github.com/muralikrish9/cyberroomba/pkg/ui"
)

func runRecon(args []string) {
	if err := reconMain(args); err != nil {
		exitWithError("%v", err)
	}
}

// reconMain returns instead of exiting so the deferred runtime close
// still drains events and alerts when the run fails.
func reconMain(args []string) error {
	cfg, pipeline, err := parseCommand("recon", args)
	if err != nil {
		return err
	}
	if cfg.Program == "" {
		return fmt.Errorf("recon needs -program")
	}

	rt, err := buildRuntime(cfg, pipeline)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets, err := resolveTargets(rt, cfg.Program, cfg.Targets, cfg.ListFile)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets; pass -t/-l, pipe scope on stdin, or seed the store first")
	}

	var bar *progressHook
	if !cfg.Silent {
		bar = newProgressHook("recon")
		rt.events.RegisterHook(bar)
	}

	s := &stage.ReconStage{
		Deps:        rt.deps,
		Concurrency: cfg.Concurrency,
		Stagger:     cfg.Stagger,
		Trigger:     "manual",
	}
	job, err := s.Run(ctx, targets)
	if err != nil {
		return fmt.Errorf("recon failed: %w", err)
	}
	if bar != nil {
		bar.finish(job.Stats["targets"]-job.Stats["failed_targets"], job.Stats["targets"], job.Stats["failed_targets"])
	}

	printRunHosts(rt, job.ID)
	return nil
}

// resolveTargets upserts any assets given on the command line, falling
// back to the stored active targets of the program.
func resolveTargets(rt *runtime, program string, assets []string, listFile string) ([]model.Target, error) {
	src := input.TargetSource{
		Assets:   assets,
		ListFile: listFile,
		Stdin:    !term.IsTerminal(int(os.Stdin.Fd())),
	}
	resolved, err := src.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolving targets: %w", err)
	}

	if len(resolved) > 0 {
		targets, err := stage.EnsureTargets(rt.deps, program, resolved)
		if err != nil {
			return nil, fmt.Errorf("registering targets: %w", err)
		}
		return targets, nil
	}

	targets, err := stage.ActiveTargets(rt.deps, program)
	if err != nil {
		return nil, fmt.Errorf("loading targets: %w", err)
	}
	return targets, nil
}

// printRunHosts renders the host records this run produced.
func printRunHosts(rt *runtime, jobID string) {
	docs, err := rt.deps.Store.Find(store.Hosts, map[string]any{"run_id": jobID})
	if err != nil {
		rt.logger.Warn("listing run hosts", "error", err)
		return
	}
	hosts := make([]model.HostRecord, 0, len(docs))
	for _, doc := range docs {
		var h model.HostRecord
		if err := store.FromDoc(doc, &h); err != nil {
			continue
		}
		hosts = append(hosts, h)
	}
	ui.PrintHosts(os.Stdout, hosts)
}
