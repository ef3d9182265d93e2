package helpers

// Random synchronisation util stash

import (
	"context"
	"sync"
	"time"

	"github.com/temoto/alive/v2"
)

// SleepAlive returns nil after d, ctx.Err() on ctx cancel
// or ErrStopped when a is stopped first.
func SleepAlive(ctx context.Context, a *alive.Alive, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.StopChan():
		return ErrStopped
	}
}

type AtomicError struct {
	mu  sync.Mutex
	err error
	set bool
}

func (a *AtomicError) Load() (error, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err, a.set
}

// StoreOnce stores e only first time, returns same as Load() before modification.
func (a *AtomicError) StoreOnce(e error) (error, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	berr, bset := a.err, a.set
	if !bset {
		a.err, a.set = e, true
	}
	return berr, bset
}
