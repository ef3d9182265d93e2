package aprsis

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/juju/errors"
	"github.com/temoto/aprsis/helpers"
	"github.com/temoto/aprsis/log2"
	"github.com/temoto/atomic_clock"
)

// Lines shorter than this are framing noise, dropped silently.
const minLineLen = 3

var aLongTimeAgo = time.Unix(1, 0)

type LoginState int32

const (
	LoginUnknown LoginState = iota
	LoginVerified
	LoginUnverified
)

func (s LoginState) String() string {
	switch s {
	case LoginVerified:
		return "verified"
	case LoginUnverified:
		return "unverified"
	}
	return "unknown"
}

// ReadHalf is the receive side of a connection. Single consumer.
type ReadHalf struct {
	mu      sync.Mutex // one Receive at a time
	codec   LineCodec
	scanner *bufio.Scanner
	src     errReader
	net     net.Conn
	ended   bool
	err     helpers.AtomicError // first fatal error
	last    atomic_clock.Clock
	login   int32 // LoginState

	guard     *guard
	closed    atomic.Bool
	closeOnce sync.Once
	log       *log2.Log
	opt       *Options
	stat      *SessionStat
}

func newReadHalf(netConn net.Conn, g *guard, opt *Options, stat *SessionStat) *ReadHalf {
	const tcpOverhead = 40
	r := &ReadHalf{
		net:   netConn,
		guard: g,
		log:   opt.Log,
		opt:   opt,
		stat:  stat,
	}
	initial := 4 << 10
	if opt.ReadLimit < initial {
		initial = opt.ReadLimit
	}
	r.src = errReader{R: helpers.NewStatReader(netConn, &stat.Recv.Bytes, tcpOverhead)}
	r.scanner = bufio.NewScanner(&r.src)
	r.scanner.Buffer(make([]byte, 0, initial), opt.ReadLimit)
	r.scanner.Split(r.split)
	r.last.SetNow()
	return r
}

// Receive blocks until next data packet, skipping status lines and noise.
//
// Returned errors:
// - KindInvalidUTF8: one status line lost, stream continues
// - KindTimeout, KindIO, ctx.Err(): stream ended, following calls return io.EOF
// - io.EOF: stream ended
func (r *ReadHalf) Receive(ctx context.Context) (RawPacket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		if r.ended {
			return RawPacket{}, io.EOF
		}
		if r.closed.Load() {
			return RawPacket{}, r.end(newError(KindIO, "receive", ErrClosing))
		}

		line, err := r.readLine(ctx)
		if err != nil {
			return RawPacket{}, r.end(err)
		}
		if len(line) < minLineLen {
			r.stat.Recv.Noise.Register(len(line))
			continue
		}
		if line[0] == '#' {
			if err = r.status(line); err != nil {
				return RawPacket{}, err
			}
			continue
		}

		r.stat.Recv.Packet.Register(len(line))
		raw := make([]byte, len(line))
		copy(raw, line)
		return RawPacket{Raw: raw}, nil
	}
}

// Stream returns pull-based sequence over Receive.
// No line is read until Next is called.
func (r *ReadHalf) Stream(ctx context.Context) *Stream {
	return &Stream{ctx: ctx, r: r}
}

// Err returns the error which ended the stream, nil while it runs or after clean EOF.
func (r *ReadHalf) Err() error {
	err, _ := r.err.Load()
	return err
}

func (r *ReadHalf) LoginState() LoginState {
	return LoginState(atomic.LoadInt32(&r.login))
}

func (r *ReadHalf) SinceLastRecv() time.Duration { return atomic_clock.Since(&r.last) }

// Close releases this half. Socket is closed and keep-alive stopped
// when the write half is closed too. Idempotent.
func (r *ReadHalf) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		r.guard.release()
	})
	return nil
}

func (r *ReadHalf) end(e error) error {
	r.ended = true
	if e == io.EOF {
		r.log.Debugf("receive end of stream")
		return e
	}
	if _, found := r.err.StoreOnce(e); !found {
		r.log.Debugf("receive end local=%s remote=%s e=%s",
			addrString(r.net.LocalAddr()), addrString(r.net.RemoteAddr()), shortError(e))
	}
	return e
}

func (r *ReadHalf) readLine(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.net.SetReadDeadline(time.Now().Add(r.opt.ReadTimeout)); err != nil {
		return nil, newError(KindIO, "receive", errors.Annotate(err, "SetReadDeadline"))
	}
	// cancel interrupts blocked read by moving deadline into the past
	cancelled := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = r.net.SetReadDeadline(aLongTimeAgo)
		close(cancelled)
	})
	ok := r.scanner.Scan()
	if !stop() {
		// late callback must not clobber deadline of the next readLine
		<-cancelled
	}
	if ok {
		r.last.SetNow()
		return r.scanner.Bytes(), nil
	}

	err := r.scanner.Err()
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err == nil:
		return nil, io.EOF
	case isTimeout(err):
		return nil, newError(KindTimeout, "receive", errors.Errorf("no line within %s", r.opt.ReadTimeout))
	case stderrors.Is(err, bufio.ErrTooLong):
		return nil, newError(KindIO, "receive", errors.Annotatef(err, "read limit=%d", r.opt.ReadLimit))
	}
	return nil, newError(KindIO, "receive", errors.Annotate(err, "read"))
}

// split flushes unterminated residue only on clean end of stream.
// Partial line before timeout or reset is dropped.
func (r *ReadHalf) split(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && r.src.err != io.EOF {
		advance, line, ok := r.codec.Decode(data)
		if !ok {
			return 0, nil, nil
		}
		if line == nil {
			line = data[:0]
		}
		return advance, line, nil
	}
	return r.codec.Split(data, atEOF)
}

// errReader remembers last read error.
type errReader struct {
	R   io.Reader
	err error
}

func (er *errReader) Read(p []byte) (int, error) {
	n, err := er.R.Read(p)
	if err != nil {
		er.err = err
	}
	return n, err
}

// status inspects server status line for login outcome, for observability only.
func (r *ReadHalf) status(line []byte) error {
	r.stat.Recv.Status.Register(len(line))
	if !utf8.Valid(line) {
		r.log.Errorf("server status line is not UTF-8 b=%x", line)
		return newError(KindInvalidUTF8, "receive", errors.Errorf("status line b=%x", line))
	}
	s := string(line)
	r.log.Debugf("server: %s", s)
	switch {
	case strings.Contains(s, "unverified"):
		atomic.StoreInt32(&r.login, int32(LoginUnverified))
		r.log.Infof("user not verified on APRS-IS server, sending is not allowed")
	case strings.Contains(s, " verified"):
		atomic.StoreInt32(&r.login, int32(LoginVerified))
		r.log.Infof("user verified on APRS-IS server")
	}
	return nil
}

// Stream is a lazy sequence of packets and failures.
//
//	s := conn.Stream(ctx)
//	for s.Next() {
//		if s.Err() != nil { ... continue }
//		use(s.Packet())
//	}
type Stream struct {
	ctx context.Context
	r   *ReadHalf
	pkt RawPacket
	err error
}

// Next advances to the next item, which is either a packet or a failure.
// Returns false once the stream ended. Item after a fatal failure is always false.
func (s *Stream) Next() bool {
	s.pkt, s.err = s.r.Receive(s.ctx)
	if s.err == io.EOF {
		s.err = nil
		return false
	}
	return true
}

func (s *Stream) Packet() RawPacket { return s.pkt }

// Err is the failure of the current item, nil for packets.
func (s *Stream) Err() error { return s.err }

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
