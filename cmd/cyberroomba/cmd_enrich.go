package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/stage"
	"github.com/muralikrish9/cyberroomba/pkg/ui"
)

func runEnrich(args []string) {
	if err := enrichMain(args); err != nil {
		exitWithError("%v", err)
	}
}

func enrichMain(args []string) error {
	cfg, pipeline, err := parseCommand("enrich", args)
	if err != nil {
		return err
	}
	idx, err := requireIndex(cfg)
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

	s := &stage.EnrichStage{Deps: rt.deps, Trigger: "manual", Index: idx}
	job, err := s.Run(ctx)
	if err != nil {
		return fmt.Errorf("enrich failed: %w", err)
	}
	fmt.Printf("enriched %d of %d findings\n", job.Stats["enriched"], job.Stats["findings"])
	return nil
}

func runSuggest(args []string) {
	if err := suggestMain(args); err != nil {
		exitWithError("%v", err)
	}
}

func suggestMain(args []string) error {
	cfg, pipeline, err := parseCommand("suggest", args)
	if err != nil {
		return err
	}
	idx, err := requireIndex(cfg)
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg, pipeline)
	if err != nil {
		return err
	}
	defer rt.close()

	suggestions, err := stage.SuggestCVEs(rt.deps, idx)
	if err != nil {
		return fmt.Errorf("suggesting CVEs: %w", err)
	}
	if len(suggestions) == 0 {
		fmt.Println("no CVE candidates for the stored technology fingerprints")
		return nil
	}

	for _, s := range suggestions {
		tech := s.Tech.Name
		if s.Tech.Version != "" {
			tech += "/" + s.Tech.Version
		}
		fmt.Printf("%s  %s\n", ui.HostStyle.Render(tech), ui.MutedStyle.Render(joinIDs(s.CVEIDs)))
	}
	return nil
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

// sortFindings orders by severity score descending, then title.
func sortFindings(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		si, sj := findings[i].Severity.Score(), findings[j].Severity.Score()
		if si != sj {
			return si > sj
		}
		return findings[i].Title < findings[j].Title
	})
}
