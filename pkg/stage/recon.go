package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muralikrish9/cyberroomba/pkg/jsonutil"
	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/normalize"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
	"github.com/muralikrish9/cyberroomba/pkg/schedule"
	"github.com/muralikrish9/cyberroomba/pkg/store"
)

// hostKeys is the natural key for fused host records: one record per
// host per target per run batch.
var hostKeys = []string{"target_id", "host", "run_id"}

// ReconStage enumerates subdomains for each target, probes the result
// set with the resolver/prober/port-scanner trio, and persists fused
// host records.
type ReconStage struct {
	Deps        *Deps
	Concurrency int
	Stagger     time.Duration
	Trigger     string
}

type reconResult struct {
	hosts int
}

// Run executes one recon batch over the targets. Per-target tool
// failures are isolated; persistence failures fail the job.
func (s *ReconStage) Run(ctx context.Context, targets []model.Target) (*model.JobRun, error) {
	d := s.Deps
	job, err := d.startJob("recon", s.Trigger)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, events.NewStartEvent(job.ID, job.Workflow, job.Trigger, len(targets), s.Concurrency))

	norm := &normalize.HostNormalizer{Logger: d.logger()}
	var sched *schedule.Scheduler[model.Target, reconResult]
	sched = &schedule.Scheduler[model.Target, reconResult]{
		Limit:   s.Concurrency,
		Stagger: s.Stagger,
		Weigh:   func(r reconResult) int64 { return int64(r.hosts) },
		OnProgress: func(completed, total int64, _ schedule.Outcome[model.Target, reconResult]) {
			failed := atomic.LoadInt64(&sched.Stats.Failed)
			d.publish(ctx, events.NewProgressEvent(job.ID, "recon", completed, total, failed, sched.Stats.RatePerMin()))
		},
		OnError: func(target model.Target, err error) {
			d.publish(ctx, events.NewErrorEvent(job.ID, target.Asset.Value, err.Error(), false))
		},
	}

	batch := sched.Run(ctx, targets, func(ctx context.Context, target model.Target) (reconResult, error) {
		return s.reconTarget(ctx, norm, job.ID, target)
	})

	job.Stats["targets"] = int64(len(targets))
	job.Stats["failed_targets"] = batch.Failed
	job.Stats["hosts"] = batch.Aggregate

	runErr := persistFailure(batch.Outcomes)
	d.finishRun(ctx, job, runErr)
	return job, runErr
}

// persistFailure surfaces the first persistence error from the batch.
// Tool failures stay per-item; losing writes fails the whole run.
func persistFailure[I, R any](outcomes []schedule.Outcome[I, R]) error {
	for _, out := range outcomes {
		if out.Err != nil && errors.Is(out.Err, store.ErrPersist) {
			return out.Err
		}
	}
	return nil
}

// reconTarget runs the full tool fan-out for one target and stores the
// fused host records.
func (s *ReconStage) reconTarget(ctx context.Context, norm *normalize.HostNormalizer, jobID string, target model.Target) (reconResult, error) {
	d := s.Deps
	log := d.logger().With("target", target.Asset.Value, "job", jobID)

	sources := make(map[string][][]byte)

	// Subdomain enumeration seeds the host list for name-based assets.
	// IPs and CIDRs have nothing to enumerate and go straight to the
	// probing trio; a failed enumeration still probes the apex itself.
	var subRecords [][]byte
	if enumerable(target.Asset.Type) {
		subRecords = s.invokeOptional(ctx, log, normalize.SourceSubfinder, jobID, target.Asset.Value)
		if subRecords != nil {
			sources[normalize.SourceSubfinder] = subRecords
		}
	}

	hosts := hostList(target, subRecords)
	if len(hosts) == 0 {
		return reconResult{}, nil
	}

	listPath, err := writeHostList(jobID, target.ID, hosts)
	if err != nil {
		return reconResult{}, err
	}
	defer os.Remove(listPath)

	// The probing trio runs concurrently; the process-wide semaphore
	// inside the tool adapter caps actual processes.
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, source := range []string{normalize.SourceDNSX, normalize.SourceHTTPX, normalize.SourceNaabu} {
		wg.Add(1)
		go func(source string) {
			defer wg.Done()
			records := s.invokeOptional(ctx, log, source, jobID, listPath)
			if records == nil {
				return
			}
			mu.Lock()
			sources[source] = records
			mu.Unlock()
		}(source)
	}
	wg.Wait()

	records := norm.Hosts(target.ID, jobID, sources)
	for _, rec := range records {
		doc, err := store.ToDoc(rec)
		if err != nil {
			return reconResult{}, fmt.Errorf("%w: encode host: %v", store.ErrPersist, err)
		}
		if err := d.Store.Upsert(store.Hosts, hostKeys, doc); err != nil {
			return reconResult{}, err
		}
		d.publish(ctx, events.NewHostEvent(jobID, rec))
	}

	if err := d.Store.UpdateByID(store.Targets, target.ID, map[string]any{
		"last_seen": time.Now().UTC().Format(time.RFC3339Nano),
	}); err != nil {
		var nf *store.NotFoundError
		if !errors.As(err, &nf) {
			return reconResult{}, err
		}
	}

	return reconResult{hosts: len(records)}, nil
}

// enumerable reports whether the asset type carries a DNS name worth
// feeding to subdomain enumeration.
func enumerable(t model.AssetType) bool {
	switch t {
	case model.AssetDomain, model.AssetHostname:
		return true
	}
	return false
}

// invokeOptional runs one tool and treats any failure as an empty
// result set for that source.
func (s *ReconStage) invokeOptional(ctx context.Context, log *slog.Logger, source, jobID, target string) [][]byte {
	spec, ok := s.Deps.spec(source)
	if !ok {
		return nil
	}
	records, err := s.Deps.Tools.Invoke(ctx, spec, jobID, target)
	if err != nil {
		log.Warn("source unavailable", "source", source, "error", err)
		return nil
	}
	return records
}

// hostList derives the probe list: every enumerated subdomain plus the
// target's own host form.
func hostList(target model.Target, subRecords [][]byte) []string {
	seen := make(map[string]bool)
	var hosts []string
	add := func(h string) {
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		hosts = append(hosts, h)
	}

	switch target.Asset.Type {
	case model.AssetURL:
		add(stripURLHost(target.Asset.Value))
	case model.AssetCIDR:
		// CIDRs go to the port scanner as-is; enumeration is skipped.
		add(target.Asset.Value)
	default:
		add(target.Asset.Value)
	}

	for _, raw := range subRecords {
		var rec normalize.SubfinderRecord
		if err := jsonutil.Unmarshal(raw, &rec); err == nil {
			add(rec.Host)
		}
	}
	return hosts
}

func stripURLHost(v string) string {
	v = strings.TrimPrefix(v, "https://")
	v = strings.TrimPrefix(v, "http://")
	if i := strings.IndexByte(v, '/'); i >= 0 {
		v = v[:i]
	}
	return v
}

func writeHostList(jobID, targetID string, hosts []string) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("recon-%s-%s-*.txt", filepath.Base(jobID), filepath.Base(targetID)))
	if err != nil {
		return "", err
	}
	defer f.Close()
	for _, h := range hosts {
		if _, err := fmt.Fprintln(f, h); err != nil {
			os.Remove(f.Name())
			return "", err
		}
	}
	return f.Name(), nil
}
