package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/muralikrish9/cyberroomba/pkg/cve"
	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/store"
)

// EnrichStage backfills CVSS data onto already-stored findings from a
// freshly built CVE index. It runs as its own job so feed updates can
// re-enrich historical findings without re-scanning.
type EnrichStage struct {
	Deps    *Deps
	Trigger string
	Index   cve.Index
}

// Run enriches every stored finding in place.
func (s *EnrichStage) Run(ctx context.Context) (*model.JobRun, error) {
	d := s.Deps
	job, err := d.startJob("enrich", s.Trigger)
	if err != nil {
		return nil, err
	}

	runErr := s.enrichAll(job)
	d.finishRun(ctx, job, runErr)
	return job, runErr
}

func (s *EnrichStage) enrichAll(job *model.JobRun) error {
	d := s.Deps
	docs, err := d.Store.Find(store.Findings, nil)
	if err != nil {
		return err
	}

	var enriched int64
	for _, doc := range docs {
		var f model.Finding
		if err := store.FromDoc(doc, &f); err != nil {
			d.logger().Warn("skipping undecodable finding", "id", doc.ID(), "error", err)
			continue
		}
		if len(f.CVEs) == 0 {
			continue
		}
		one := []model.Finding{f}
		if cve.Enrich(s.Index, one) == 0 {
			continue
		}

		updated, err := store.ToDoc(one[0])
		if err != nil {
			return fmt.Errorf("%w: encode finding: %v", store.ErrPersist, err)
		}
		if err := d.Store.UpdateByID(store.Findings, f.ID, map[string]any{"cves": updated["cves"]}); err != nil {
			return err
		}
		enriched++
	}

	job.Stats["findings"] = int64(len(docs))
	job.Stats["enriched"] = enriched
	return nil
}

// SuggestCVEs proposes candidate CVEs from the technology fingerprints
// of every stored host. Read-only; no job run is recorded.
func SuggestCVEs(d *Deps, idx cve.Index) ([]cve.Suggestion, error) {
	docs, err := d.Store.Find(store.Hosts, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var techs []cve.Tech
	for _, doc := range docs {
		var h model.HostRecord
		if err := store.FromDoc(doc, &h); err != nil {
			continue
		}
		for _, t := range h.Technologies {
			name, version := splitTech(t)
			key := strings.ToLower(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			techs = append(techs, cve.Tech{Name: name, Version: version})
		}
	}

	return cve.Suggest(idx, techs), nil
}

// splitTech separates "nginx/1.18.0" style fingerprints into name and
// version.
func splitTech(t string) (name, version string) {
	if i := strings.IndexByte(t, '/'); i >= 0 {
		return t[:i], t[i+1:]
	}
	return t, ""
}
