package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/stage"
	"github.com/muralikrish9/cyberroomba/pkg/store"
	"github.com/muralikrish9/cyberroomba/pkg/ui"
)

func runAttack(args []string) {
	if err := attackMain(args); err != nil {
		exitWithError("%v", err)
	}
}

func attackMain(args []string) error {
	cfg, pipeline, err := parseCommand("attack", args)
	if err != nil {
		return err
	}
	idx, err := loadIndex(cfg)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, pipeline)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hosts, err := stage.AliveHosts(rt.deps)
	if err != nil {
		return fmt.Errorf("loading hosts: %w", err)
	}
	if len(hosts) == 0 {
		return fmt.Errorf("no live hosts in the store; run recon first")
	}

	var bar *progressHook
	if !cfg.Silent {
		bar = newProgressHook("attack")
		rt.events.RegisterHook(bar)
	}

	s := &stage.AttackStage{
		Deps:        rt.deps,
		Concurrency: cfg.Concurrency,
		Stagger:     cfg.Stagger,
		Trigger:     "manual",
		Profiles:    attackProfiles(pipeline),
		Index:       idx,
	}
	job, err := s.Run(ctx, hosts)
	if err != nil {
		return fmt.Errorf("attack failed: %w", err)
	}
	if bar != nil {
		bar.finish(job.Stats["hosts"]-job.Stats["failed_hosts"], job.Stats["hosts"], job.Stats["failed_hosts"])
	}

	printStoredFindings(rt)
	return nil
}

// printStoredFindings renders every stored finding, highest severity
// first.
func printStoredFindings(rt *runtime) {
	docs, err := rt.deps.Store.Find(store.Findings, nil)
	if err != nil {
		rt.logger.Warn("listing findings", "error", err)
		return
	}
	findings := make([]model.Finding, 0, len(docs))
	for _, doc := range docs {
		var f model.Finding
		if err := store.FromDoc(doc, &f); err != nil {
			continue
		}
		findings = append(findings, f)
	}
	sortFindings(findings)
	ui.PrintFindings(os.Stdout, findings)
}
