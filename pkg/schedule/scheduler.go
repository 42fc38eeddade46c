// Package schedule provides the bounded-concurrency batch scheduler
// that drives recon and attack stages, plus the process-wide semaphore
// that caps total concurrent tool invocations across both the outer
// batch and any per-item fan-out.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Outcome holds the result of one scheduled operation. A failed item
// carries a zero Value and a non-nil Err; failures never abort
// sibling items.
type Outcome[I, R any] struct {
	Item     I
	Value    R
	Err      error
	Duration time.Duration
}

// Batch is the aggregate result of a Run call. It always contains
// exactly one Outcome per input item.
type Batch[I, R any] struct {
	Outcomes  []Outcome[I, R]
	Completed int64
	Failed    int64
	Aggregate int64
}

// Stats tracks execution counters. All fields are updated atomically;
// read them with the accessor methods while a batch is in flight.
type Stats struct {
	Total     int64
	Completed int64
	Succeeded int64
	Failed    int64
	StartTime time.Time
}

// Progress returns completion percentage (0-100).
func (s *Stats) Progress() float64 {
	total := atomic.LoadInt64(&s.Total)
	if total == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / float64(total) * 100
}

// RatePerMin returns completions per minute since the batch started.
func (s *Stats) RatePerMin() float64 {
	elapsed := time.Since(s.StartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Completed)) / elapsed
}

// Operation is the per-item work function. It runs with the batch
// context; any timeout belongs inside the operation (typically at the
// tool-adapter boundary), not in the scheduler.
type Operation[I, R any] func(ctx context.Context, item I) (R, error)

// Scheduler applies an operation to a batch of items with at most
// Limit operations in flight. As soon as one finishes, the next
// pending item in input order is dispatched into the freed slot; no
// barrier waits for the whole batch.
//
// The scheduler enforces no timeout or cancellation of its own: a hung
// operation occupies its slot until the batch context is cancelled.
type Scheduler[I, R any] struct {
	// Limit is the maximum number of operations in flight (min 1).
	Limit int

	// Stagger spaces the initial batch of launches by index*Stagger
	// to avoid synchronized bursts against one external dependency.
	Stagger time.Duration

	// Weigh converts a successful value into its aggregate
	// contribution. Nil counts 1 per success.
	Weigh func(R) int64

	// OnProgress is called after every individual completion,
	// success or failure, with the monotonically increasing
	// completed count.
	OnProgress func(completed, total int64, out Outcome[I, R])

	// OnError is called for each failed item.
	OnError func(item I, err error)

	// Stats is reset at the start of every Run.
	Stats Stats
}

// Run executes op for every item and returns once all items have
// settled. Each item's failure (error or panic) is converted to a
// zero-valued Outcome and counted; it never halts siblings.
// An empty item list returns immediately with zero counts.
func (s *Scheduler[I, R]) Run(ctx context.Context, items []I, op Operation[I, R]) Batch[I, R] {
	if len(items) == 0 {
		return Batch[I, R]{}
	}

	limit := s.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	s.Stats = Stats{
		Total:     int64(len(items)),
		StartTime: time.Now(),
	}

	sem := make(chan struct{}, limit)
	outcomes := make([]Outcome[I, R], len(items))
	var aggregate int64
	var wg sync.WaitGroup

	for i, item := range items {
		// A cancelled batch context stops dispatching new items;
		// in-flight operations still settle below.
		if ctx.Err() != nil {
			out := Outcome[I, R]{Item: item, Err: ctx.Err()}
			outcomes[i] = out
			s.complete(out)
			continue
		}

		// Acquire a slot in input order so the next pending item is
		// always the lowest unstarted index.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			out := Outcome[I, R]{Item: item, Err: ctx.Err()}
			outcomes[i] = out
			s.complete(out)
			continue
		}
		wg.Add(1)

		go func(idx int, it I) {
			defer wg.Done()
			defer func() { <-sem }()

			// Stagger only the initial wave; later items are already
			// desynchronized by slot turnover.
			if s.Stagger > 0 && idx < limit {
				wait := time.Duration(idx) * s.Stagger
				select {
				case <-time.After(wait):
				case <-ctx.Done():
				}
			}

			start := time.Now()
			value, err := runGuarded(ctx, op, it)
			out := Outcome[I, R]{
				Item:     it,
				Value:    value,
				Err:      err,
				Duration: time.Since(start),
			}
			outcomes[idx] = out

			if err == nil {
				atomic.AddInt64(&aggregate, s.weigh(value))
			}
			s.complete(out)
		}(i, item)
	}

	wg.Wait()

	return Batch[I, R]{
		Outcomes:  outcomes,
		Completed: atomic.LoadInt64(&s.Stats.Completed),
		Failed:    atomic.LoadInt64(&s.Stats.Failed),
		Aggregate: atomic.LoadInt64(&aggregate),
	}
}

func (s *Scheduler[I, R]) weigh(v R) int64 {
	if s.Weigh == nil {
		return 1
	}
	return s.Weigh(v)
}

// complete updates counters and fires callbacks for one settled item.
func (s *Scheduler[I, R]) complete(out Outcome[I, R]) {
	completed := atomic.AddInt64(&s.Stats.Completed, 1)
	if out.Err == nil {
		atomic.AddInt64(&s.Stats.Succeeded, 1)
	} else {
		atomic.AddInt64(&s.Stats.Failed, 1)
		if s.OnError != nil {
			s.OnError(out.Item, out.Err)
		}
	}
	if s.OnProgress != nil {
		s.OnProgress(completed, atomic.LoadInt64(&s.Stats.Total), out)
	}
}

// runGuarded executes op, converting a panic into an error so one bad
// item cannot take down the batch.
func runGuarded[I, R any](ctx context.Context, op Operation[I, R], item I) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero R
			value = zero
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx, item)
}
