package schedule

import "context"

// Semaphore caps concurrent external-tool invocations process-wide.
// The outer scheduler bounds items in flight, but one item may fan out
// into several concurrent sub-invocations; without a shared cap the
// effective peak is outerLimit × innerFanOut. A single Semaphore is
// created in main and acquired by every leaf invocation, so the peak
// number of running tool processes never exceeds its size.
type Semaphore chan struct{}

// NewSemaphore returns a semaphore with n slots (min 1).
func NewSemaphore(n int) Semaphore {
	if n < 1 {
		n = 1
	}
	return make(Semaphore, n)
}

// Acquire takes a slot, blocking until one frees or ctx is done.
func (s Semaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (s Semaphore) Release() {
	if s == nil {
		return
	}
	<-s
}

// InFlight returns the number of currently held slots.
func (s Semaphore) InFlight() int {
	return len(s)
}
