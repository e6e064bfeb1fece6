package sempool

import "context"

// NewSemaphore returns a semaphore that admits up to capacity holders.
func NewSemaphore(capacity int) *Semaphore {
	return &Semaphore{inner: make(chan struct{}, capacity)}
}

// Semaphore is a counting semaphore whose acquisition can be abandoned.
type Semaphore struct {
	inner chan struct{}
}

// AcquireContext blocks until a slot is available or ctx is done. A caller
// that gets an error doesn't hold the semaphore and must not release it.
func (s *Semaphore) AcquireContext(ctx context.Context) error {
	select {
	case s.inner <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by AcquireContext.
func (s *Semaphore) Release() {
	select {
	case <-s.inner:
	default:
		panic("thread semaphore inconsistency: release before acquire!")
	}
}
