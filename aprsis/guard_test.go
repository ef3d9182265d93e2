package aprsis

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardRelease(t *testing.T) {
	t.Parallel()
	var stopped int32
	g := newGuard(2, func() { atomic.AddInt32(&stopped, 1) })
	exited := make(chan struct{})
	assert.True(t, g.spawn(func(stopch <-chan struct{}) {
		<-stopch
		close(exited)
	}))

	assert.False(t, g.release())
	assert.True(t, g.running())
	assert.Equal(t, int32(0), atomic.LoadInt32(&stopped))

	assert.True(t, g.release())
	<-exited
	assert.False(t, g.running())
	assert.Equal(t, int32(1), atomic.LoadInt32(&stopped))

	// extra release is harmless, spawn after stop is refused
	assert.False(t, g.release())
	assert.False(t, g.spawn(func(<-chan struct{}) {}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&stopped))
}
