package stage

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/muralikrish9/cyberroomba/pkg/cve"
	"github.com/muralikrish9/cyberroomba/pkg/finding"
	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/normalize"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
	"github.com/muralikrish9/cyberroomba/pkg/schedule"
	"github.com/muralikrish9/cyberroomba/pkg/store"
)

// findingKeys is the dedup key for stored findings.
var findingKeys = []string{"host_id", "source", "title"}

// AttackProfile is one declarative scan pass: which template tags to
// run against a host and how to label the results. Adding a pass means
// adding a table row, not another code path.
type AttackProfile struct {
	Name     string
	Tags     []string
	Severity string
	Category string
}

// severityOverride returns the canonical severity this profile stamps
// on its findings, when one is configured.
func (p AttackProfile) severityOverride() (finding.Severity, bool) {
	if p.Severity == "" {
		return "", false
	}
	s := finding.Severity(strings.ToLower(strings.TrimSpace(p.Severity)))
	if !s.IsValid() {
		return "", false
	}
	return s, true
}

// args returns the extra tool arguments this profile contributes.
func (p AttackProfile) args() []string {
	var extra []string
	if len(p.Tags) > 0 {
		extra = append(extra, "-tags", strings.Join(p.Tags, ","))
	}
	if p.Severity != "" {
		extra = append(extra, "-severity", p.Severity)
	}
	return extra
}

// DefaultProfiles is the standard scan table.
func DefaultProfiles() []AttackProfile {
	return []AttackProfile{
		{Name: "cves", Tags: []string{"cve"}, Category: "vuln"},
		{Name: "exposures", Tags: []string{"exposure"}, Category: "exposure"},
		{Name: "misconfig", Tags: []string{"misconfig"}, Category: "misconfiguration"},
		{Name: "default-logins", Tags: []string{"default-login"}, Category: "weak-auth"},
		{Name: "takeovers", Tags: []string{"takeover"}, Category: "takeover"},
		{Name: "tech", Tags: []string{"tech"}, Severity: "info", Category: "fingerprint"},
	}
}

// AttackStage runs the profile table against live hosts and persists
// normalized, CVE-enriched findings.
type AttackStage struct {
	Deps        *Deps
	Concurrency int
	Stagger     time.Duration
	Trigger     string

	// Profiles defaults to DefaultProfiles when empty.
	Profiles []AttackProfile

	// Index enables CVSS backfill when non-nil.
	Index cve.Index
}

type attackResult struct {
	findings int
}

// Run executes the attack batch over the hosts. Each host is one
// scheduler item; profile failures within a host are isolated per
// profile.
func (s *AttackStage) Run(ctx context.Context, hosts []model.HostRecord) (*model.JobRun, error) {
	d := s.Deps
	job, err := d.startJob("attack", s.Trigger)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, events.NewStartEvent(job.ID, job.Workflow, job.Trigger, len(hosts), s.Concurrency))

	profiles := s.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}

	norm := &normalize.FindingNormalizer{Logger: d.logger()}
	var sched *schedule.Scheduler[model.HostRecord, attackResult]
	sched = &schedule.Scheduler[model.HostRecord, attackResult]{
		Limit:   s.Concurrency,
		Stagger: s.Stagger,
		Weigh:   func(r attackResult) int64 { return int64(r.findings) },
		OnProgress: func(completed, total int64, _ schedule.Outcome[model.HostRecord, attackResult]) {
			failed := atomic.LoadInt64(&sched.Stats.Failed)
			d.publish(ctx, events.NewProgressEvent(job.ID, "attack", completed, total, failed, sched.Stats.RatePerMin()))
		},
		OnError: func(host model.HostRecord, err error) {
			d.publish(ctx, events.NewErrorEvent(job.ID, host.Host, err.Error(), false))
		},
	}

	batch := sched.Run(ctx, hosts, func(ctx context.Context, host model.HostRecord) (attackResult, error) {
		return s.attackHost(ctx, norm, profiles, job.ID, host)
	})

	job.Stats["hosts"] = int64(len(hosts))
	job.Stats["failed_hosts"] = batch.Failed
	job.Stats["findings"] = batch.Aggregate

	runErr := persistFailure(batch.Outcomes)
	d.finishRun(ctx, job, runErr)
	return job, runErr
}

// attackHost runs every profile against one host and persists the
// merged findings. A profile whose tool fails contributes nothing; the
// remaining profiles still run.
func (s *AttackStage) attackHost(ctx context.Context, norm *normalize.FindingNormalizer, profiles []AttackProfile, jobID string, host model.HostRecord) (attackResult, error) {
	d := s.Deps
	log := d.logger().With("host", host.Host, "job", jobID)

	spec, ok := d.spec("nuclei")
	if !ok {
		return attackResult{}, fmt.Errorf("no attack tool configured")
	}

	target := attackTarget(host)
	var lists [][]model.Finding
	for _, profile := range profiles {
		records, err := d.Tools.Invoke(ctx, spec, jobID, target, profile.args()...)
		if err != nil {
			log.Warn("profile failed", "profile", profile.Name, "error", err)
			continue
		}
		findings := norm.Findings(spec.Name, host.ID, records)
		sev, hasSev := profile.severityOverride()
		for i := range findings {
			if profile.Category != "" && findings[i].Category == "" {
				findings[i].Category = profile.Category
			}
			if hasSev {
				findings[i].Severity = sev
			}
		}
		lists = append(lists, findings)
	}

	merged := normalize.Merge(lists...)
	if s.Index != nil {
		cve.Enrich(s.Index, merged)
	}

	for _, f := range merged {
		doc, err := store.ToDoc(f)
		if err != nil {
			return attackResult{}, fmt.Errorf("%w: encode finding: %v", store.ErrPersist, err)
		}
		if err := d.Store.Upsert(store.Findings, findingKeys, doc); err != nil {
			return attackResult{}, err
		}
		d.publish(ctx, events.NewFindingEvent(jobID, f))
	}

	return attackResult{findings: len(merged)}, nil
}

// attackTarget picks the URL form the scanner probes: https against
// the host name.
func attackTarget(host model.HostRecord) string {
	return "https://" + host.Host
}
