package stage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/muralikrish9/cyberroomba/pkg/model"
	"github.com/muralikrish9/cyberroomba/pkg/output/events"
	"github.com/muralikrish9/cyberroomba/pkg/store"
)

// startJob creates a running JobRun record before any work begins, so
// a crash mid-run leaves visible evidence.
func (d *Deps) startJob(workflow, trigger string) (*model.JobRun, error) {
	job := &model.JobRun{
		ID:        uuid.NewString(),
		Workflow:  workflow,
		Trigger:   trigger,
		Status:    model.JobRunning,
		StartedAt: time.Now().UTC(),
		Stats:     make(map[string]int64),
	}
	doc, err := store.ToDoc(job)
	if err != nil {
		return nil, err
	}
	if err := d.Store.InsertMany(store.Jobs, doc); err != nil {
		return nil, err
	}
	return job, nil
}

// finishRun emits the end-of-run events and records the terminal job
// transition.
func (d *Deps) finishRun(ctx context.Context, job *model.JobRun, runErr error) {
	durationMS := time.Since(job.StartedAt).Milliseconds()
	d.publish(ctx, events.NewSummaryEvent(job.ID, job.Workflow, job.Stats, durationMS))
	if err := d.finishJob(job, runErr); err != nil {
		d.logger().Error("job finish write failed", "job", job.ID, "error", err)
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	d.publish(ctx, events.NewCompleteEvent(job.ID, runErr == nil, msg))
}

// finishJob records the single terminal transition of a job run. Only
// the stage goroutine calls it, exactly once.
func (d *Deps) finishJob(job *model.JobRun, runErr error) error {
	now := time.Now().UTC()
	job.FinishedAt = &now
	if runErr != nil {
		job.Status = model.JobFailed
		job.Error = runErr.Error()
	} else {
		job.Status = model.JobSuccess
	}

	fields := map[string]any{
		"status":      string(job.Status),
		"finished_at": now.Format(time.RFC3339Nano),
		"error":       job.Error,
	}
	if len(job.Stats) > 0 {
		stats := make(map[string]any, len(job.Stats))
		for k, v := range job.Stats {
			stats[k] = v
		}
		fields["stats"] = stats
	}
	return d.Store.UpdateByID(store.Jobs, job.ID, fields)
}
