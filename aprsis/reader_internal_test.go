package aprsis

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/aprsis/log2"
)

// chunkConn returns one chunk per Read and records read deadline.
// Setting deadline in the past is slow, like a callback scheduled late.
type chunkConn struct {
	net.Conn
	mu       sync.Mutex
	deadline time.Time
	chunks   []string
	onRead   func()
}

func (c *chunkConn) Read(p []byte) (int, error) {
	if f := c.onRead; f != nil {
		c.onRead = nil
		f()
	}
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func (c *chunkConn) SetReadDeadline(t time.Time) error {
	if t.Before(time.Now()) {
		time.Sleep(50 * time.Millisecond)
	}
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *chunkConn) readDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}

func TestReadLineCancelDuringSuccess(t *testing.T) {
	t.Parallel()
	opt := Options{Log: log2.NewTest(t, log2.LDebug)}
	opt.setDefaults()
	var stat SessionStat
	nc := &chunkConn{chunks: []string{"first\n", "second\n"}}
	r := newReadHalf(nc, newGuard(2, func() {}), &opt, &stat)

	// cancelled while line is already arriving: read succeeds, cancel callback still runs
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	nc.onRead = cancel
	line, err := r.readLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", string(line))

	line, err = r.readLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", string(line))
	time.Sleep(100 * time.Millisecond)
	assert.True(t, nc.readDeadline().After(time.Now()), "deadline=%s", nc.readDeadline())
}
