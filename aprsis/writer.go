package aprsis

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/aprsis/helpers"
	"github.com/temoto/aprsis/log2"
)

const keepaliveLine = "# keep alive"

// WriteHalf is the send side of a connection. Safe for concurrent use,
// writes from Send, SetFilter and keep-alive task never interleave.
type WriteHalf struct {
	mu    sync.Mutex // held for exactly one line write
	codec LineCodec
	buf   []byte
	net   net.Conn
	w     io.Writer

	guard     *guard
	closed    atomic.Bool
	closeOnce sync.Once
	log       *log2.Log
	opt       *Options
	stat      *SessionStat
}

func newWriteHalf(netConn net.Conn, g *guard, opt *Options, stat *SessionStat) *WriteHalf {
	const tcpOverhead = 40
	return &WriteHalf{
		net:   netConn,
		w:     helpers.NewStatWriter(netConn, &stat.Send.Bytes, tcpOverhead),
		guard: g,
		log:   opt.Log,
		opt:   opt,
		stat:  stat,
	}
}

// Send serializes p and writes it as one line. Never retries.
// Encode failure is KindEncode, write failure is KindIO.
// Failure does not affect the read side.
func (w *WriteHalf) Send(ctx context.Context, p PacketEncoder) error {
	if w.closed.Load() {
		return newError(KindIO, "send", ErrClosing)
	}
	b, err := p.Encode()
	if err != nil {
		return newError(KindEncode, "send", errors.Annotate(err, "encode"))
	}
	if bytes.ContainsAny(b, "\r\n") {
		return newError(KindEncode, "send", errors.Errorf("encoded packet contains line delimiter"))
	}
	if err = w.writeLine(ctx, b); err != nil {
		w.log.Debugf("send err=%s", shortError(err))
		return newError(KindIO, "send", err)
	}
	w.stat.Send.Packet.Register(len(b))
	return nil
}

// SetFilter replaces server side filter of the running session.
func (w *WriteHalf) SetFilter(ctx context.Context, filter string) error {
	return w.Send(ctx, LineEncoder("#filter "+filter))
}

// Close releases this half. Socket is closed and keep-alive stopped
// when the read half is closed too. Idempotent.
func (w *WriteHalf) Close() error {
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		w.guard.release()
	})
	return nil
}

func (w *WriteHalf) writeLine(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline := time.Now().Add(w.opt.NetworkTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := w.net.SetWriteDeadline(deadline); err != nil {
		return errors.Annotate(err, "SetWriteDeadline")
	}
	w.buf = w.codec.Encode(w.buf[:0], line)
	if err := helpers.WriteAll(w.w, w.buf); err != nil {
		return errors.Annotate(err, "write")
	}
	return nil
}

// heartbeat writes keep-alive line every opt.Keepalive until stopch is closed
// or the first write fails.
func (w *WriteHalf) heartbeat(stopch <-chan struct{}) {
	w.log.Debugf("keepalive interval=%s", w.opt.Keepalive)
	tmr := time.NewTicker(w.opt.Keepalive)
	defer tmr.Stop()
	for {
		select {
		case <-stopch:
			return
		case <-tmr.C:
		}
		// ticker and stop may be ready together, stop wins
		select {
		case <-stopch:
			return
		default:
		}
		w.log.Debugf("sending keep alive")
		if err := w.writeLine(context.Background(), []byte(keepaliveLine)); err != nil {
			w.log.Errorf("keepalive stopped err=%s", shortError(err))
			return
		}
		w.stat.Send.Keepalive.Register(len(keepaliveLine))
	}
}
