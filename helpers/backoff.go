package helpers

import (
	"sync/atomic"
	"time"

	"github.com/temoto/atomic_clock"
)

// Backoff is limited exponential retry delay, safe for concurrent use.
// Failure multiplies next delay by K within [Min, Max], Reset returns to Min.
// Zero value Backoff reports no delay until first Failure.
type Backoff struct {
	next int64 // atomic align
	last atomic_clock.Clock

	Min time.Duration
	Max time.Duration
	K   float32
	Res time.Duration // delay resolution for nice logs, default=1ms
}

// DelayAfter records outcome of an attempt and returns wait before the next one.
// Publish retry:
//
//	err := publish()
//	helpers.SleepAlive(ctx, a, b.DelayAfter(err == nil))
func (b *Backoff) DelayAfter(success bool) time.Duration {
	atomic.CompareAndSwapInt64(&b.next, 0, int64(b.Min))
	if success {
		b.Reset()
	} else {
		b.Failure()
	}
	return b.DelayBefore()
}

// DelayBefore returns time left until next attempt, counting from last Failure or Reset.
// Reconnect loop:
//
//	helpers.SleepAlive(ctx, a, b.DelayBefore())
//	conn, err := connect()
//	if err != nil { b.Failure() } else { b.Reset() }
func (b *Backoff) DelayBefore() time.Duration {
	next := time.Duration(atomic.LoadInt64(&b.next))
	if next == 0 {
		return 0
	}
	delay := b.limit(next)
	since := atomic_clock.Since(&b.last)
	if since >= delay {
		return 0
	}
	return b.round(delay - since)
}

func (b *Backoff) Failure() {
	next := time.Duration(atomic.LoadInt64(&b.next))
	next = time.Duration(float32(next) * b.K)
	next = b.limit(next)
	b.last.SetNow()
	atomic.StoreInt64(&b.next, int64(next))
}

func (b *Backoff) Reset() {
	b.last.SetNow()
	atomic.StoreInt64(&b.next, int64(b.Min))
}

func (b *Backoff) limit(d time.Duration) time.Duration {
	if d < b.Min {
		d = b.Min
	}
	if d > b.Max {
		d = b.Max
	}
	return b.round(d)
}

func (b *Backoff) round(d time.Duration) time.Duration {
	res := b.Res
	if res == 0 {
		res = 1 * time.Millisecond
	}
	return d / res * res
}
