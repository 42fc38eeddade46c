package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConcurrencyNeverExceedsLimit verifies the core guarantee: at
// most Limit operations are in flight at any instant, for several
// (N, C) combinations.
func TestConcurrencyNeverExceedsLimit(t *testing.T) {
	cases := []struct {
		items int
		limit int
	}{
		{items: 20, limit: 1},
		{items: 20, limit: 3},
		{items: 50, limit: 10},
		{items: 5, limit: 5},
		{items: 3, limit: 100}, // limit above item count
	}

	for _, tc := range cases {
		items := make([]int, tc.items)
		for i := range items {
			items[i] = i
		}

		var inFlight, peak int64
		s := &Scheduler[int, int]{Limit: tc.limit}
		batch := s.Run(context.Background(), items, func(_ context.Context, n int) (int, error) {
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return n * 2, nil
		})

		if len(batch.Outcomes) != tc.items {
			t.Errorf("N=%d C=%d: got %d outcomes, want %d", tc.items, tc.limit, len(batch.Outcomes), tc.items)
		}
		if int(peak) > tc.limit {
			t.Errorf("N=%d C=%d: peak in-flight %d exceeded limit", tc.items, tc.limit, peak)
		}
		if batch.Completed != int64(tc.items) {
			t.Errorf("N=%d C=%d: completed %d, want %d", tc.items, tc.limit, batch.Completed, tc.items)
		}
	}
}

func TestEmptyBatchReturnsImmediately(t *testing.T) {
	s := &Scheduler[string, int]{Limit: 4}
	batch := s.Run(context.Background(), nil, func(context.Context, string) (int, error) {
		t.Fatal("operation must not run for empty batch")
		return 0, nil
	})
	assert.Empty(t, batch.Outcomes)
	assert.Zero(t, batch.Completed)
	assert.Zero(t, batch.Aggregate)
}

// TestFailureIsolation checks that a failing item is converted to a
// zero outcome without aborting its siblings.
func TestFailureIsolation(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5}
	boom := errors.New("tool exploded")

	s := &Scheduler[int, string]{Limit: 2}
	batch := s.Run(context.Background(), items, func(_ context.Context, n int) (string, error) {
		if n%2 == 1 {
			return "", boom
		}
		return "ok", nil
	})

	require.Len(t, batch.Outcomes, len(items))
	assert.Equal(t, int64(6), batch.Completed)
	assert.Equal(t, int64(3), batch.Failed)

	for _, out := range batch.Outcomes {
		if out.Item%2 == 1 {
			assert.ErrorIs(t, out.Err, boom)
			assert.Empty(t, out.Value, "failed item must carry zero value")
		} else {
			assert.NoError(t, out.Err)
			assert.Equal(t, "ok", out.Value)
		}
	}
}

func TestPanicConvertedToFailure(t *testing.T) {
	s := &Scheduler[int, int]{Limit: 2}
	batch := s.Run(context.Background(), []int{1, 2, 3}, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			panic("template parser bug")
		}
		return n, nil
	})
	assert.Equal(t, int64(1), batch.Failed)
	assert.Equal(t, int64(3), batch.Completed)
}

// TestDispatchOrder verifies that freed slots pick up pending items in
// original input order.
func TestDispatchOrder(t *testing.T) {
	items := []int{10, 20, 30, 40, 50}
	var mu sync.Mutex
	var started []int

	s := &Scheduler[int, int]{Limit: 1}
	s.Run(context.Background(), items, func(_ context.Context, n int) (int, error) {
		mu.Lock()
		started = append(started, n)
		mu.Unlock()
		return n, nil
	})

	assert.Equal(t, items, started)
}

func TestProgressCallbackMonotonic(t *testing.T) {
	var mu sync.Mutex
	var seen []int64

	s := &Scheduler[int, int]{
		Limit: 4,
		OnProgress: func(completed, total int64, _ Outcome[int, int]) {
			mu.Lock()
			seen = append(seen, completed)
			mu.Unlock()
			if total != 8 {
				t.Errorf("total = %d, want 8", total)
			}
		},
	}
	s.Run(context.Background(), []int{1, 2, 3, 4, 5, 6, 7, 8}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})

	require.Len(t, seen, 8)
	for i, c := range seen {
		if c != int64(i+1) {
			t.Fatalf("completed counter out of order: %v", seen)
		}
	}
}

func TestAggregateUsesWeigh(t *testing.T) {
	s := &Scheduler[int, int]{
		Limit: 3,
		Weigh: func(v int) int64 { return int64(v) },
	}
	batch := s.Run(context.Background(), []int{1, 2, 3, 4}, func(_ context.Context, n int) (int, error) {
		if n == 4 {
			return 0, errors.New("failed items contribute nothing")
		}
		return n, nil
	})
	assert.Equal(t, int64(6), batch.Aggregate)
}

func TestStaggerSpacesInitialWave(t *testing.T) {
	const stagger = 30 * time.Millisecond
	var mu sync.Mutex
	starts := map[int]time.Time{}

	s := &Scheduler[int, int]{Limit: 3, Stagger: stagger}
	s.Run(context.Background(), []int{0, 1, 2}, func(_ context.Context, n int) (int, error) {
		mu.Lock()
		starts[n] = time.Now()
		mu.Unlock()
		return n, nil
	})

	// Item 2 should start roughly 2×stagger after item 0; allow wide
	// margin for scheduler jitter.
	gap := starts[2].Sub(starts[0])
	if gap < stagger {
		t.Errorf("initial wave not staggered: gap %v < %v", gap, stagger)
	}
}

func TestCancelledContextStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran int64

	s := &Scheduler[int, int]{Limit: 1}
	items := []int{1, 2, 3, 4, 5}
	batch := s.Run(ctx, items, func(_ context.Context, n int) (int, error) {
		if atomic.AddInt64(&ran, 1) == 2 {
			cancel()
		}
		return n, nil
	})

	// Every item still settles with an outcome.
	assert.Len(t, batch.Outcomes, len(items))
	assert.Equal(t, int64(len(items)), batch.Completed)
	assert.GreaterOrEqual(t, batch.Failed, int64(1))
}

func TestSemaphore(t *testing.T) {
	sem := NewSemaphore(2)

	require.NoError(t, sem.Acquire(context.Background()))
	require.NoError(t, sem.Acquire(context.Background()))
	assert.Equal(t, 2, sem.InFlight())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, sem.Acquire(ctx), context.DeadlineExceeded)

	sem.Release()
	require.NoError(t, sem.Acquire(context.Background()))

	var nilSem Semaphore
	assert.NoError(t, nilSem.Acquire(context.Background()), "nil semaphore is a no-op")
	nilSem.Release()
}
