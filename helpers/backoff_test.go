package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	t.Parallel()
	b := Backoff{Min: 10 * time.Second, Max: 40 * time.Second, K: 2}
	assert.Equal(t, time.Duration(0), b.DelayBefore())
	b.Failure()
	assert.InDelta(t, float64(10*time.Second), float64(b.DelayBefore()), float64(time.Second))
	b.Failure()
	assert.InDelta(t, float64(20*time.Second), float64(b.DelayBefore()), float64(time.Second))
	b.Failure()
	b.Failure()
	assert.InDelta(t, float64(40*time.Second), float64(b.DelayBefore()), float64(time.Second))
	b.Reset()
	assert.InDelta(t, float64(10*time.Second), float64(b.DelayBefore()), float64(time.Second))
}

func TestBackoffDelayAfter(t *testing.T) {
	t.Parallel()
	b := Backoff{Min: time.Second, Max: time.Minute, K: 2}
	assert.InDelta(t, float64(2*time.Second), float64(b.DelayAfter(false)), float64(100*time.Millisecond))
	assert.InDelta(t, float64(4*time.Second), float64(b.DelayAfter(false)), float64(100*time.Millisecond))
	assert.InDelta(t, float64(time.Second), float64(b.DelayAfter(true)), float64(100*time.Millisecond))
	for i := 0; i < 10; i++ {
		b.Failure()
	}
	assert.InDelta(t, float64(time.Minute), float64(b.DelayBefore()), float64(100*time.Millisecond))
}

func TestFoldErrors(t *testing.T) {
	t.Parallel()
	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	e1 := ErrStopped
	assert.Equal(t, e1, FoldErrors([]error{nil, e1}))
	e2 := FoldErrors([]error{e1, e1})
	assert.EqualError(t, e2, "stopped\nstopped")
}
