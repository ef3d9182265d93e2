package aprsis

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/juju/errors"
)

// Conn is a logged in APRS-IS session.
// Receive is single consumer, Send and SetFilter are safe for concurrent use.
type Conn struct {
	r *ReadHalf
	w *WriteHalf

	net      net.Conn
	settings Settings
	opt      Options
	stat     SessionStat
}

// Connect dials s.Addr(), sends login line and starts keep-alive.
// Login outcome is not awaited, see LoginState.
func Connect(ctx context.Context, s Settings, opt Options) (*Conn, error) {
	opt.setDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	addr := s.Addr()
	opt.Log.Debugf("connecting to %s", addr)
	netConn, err := opt.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		kind := KindIO
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, newError(kind, "connect", errors.Annotatef(err, "dial %s", addr))
	}
	return NewConn(ctx, netConn, s, opt)
}

// NewConn takes ownership of established netConn and runs login on it.
// netConn is closed on error.
func NewConn(ctx context.Context, netConn net.Conn, s Settings, opt Options) (*Conn, error) {
	opt.setDefaults()
	if err := s.Validate(); err != nil {
		_ = netConn.Close()
		return nil, err
	}
	c := &Conn{
		net:      netConn,
		settings: s,
		opt:      opt,
	}
	c.opt.Log = opt.Log.ClonePrefix(fmt.Sprintf("aprsis %s: ", addrString(netConn.RemoteAddr())))

	g := newGuard(2, func() {
		if err := netConn.Close(); err != nil {
			c.opt.Log.Debugf("close err=%s", shortError(err))
		}
	})
	c.r = newReadHalf(netConn, g, &c.opt, &c.stat)
	c.w = newWriteHalf(netConn, g, &c.opt, &c.stat)

	login := s.LoginLine(c.opt.ClientName, c.opt.ClientVersion)
	c.opt.Log.Debugf("login %s", maskPasscode(login, s.Passcode))
	if err := c.w.writeLine(ctx, []byte(login)); err != nil {
		_ = c.Close()
		return nil, newError(KindIO, "login", err)
	}
	c.stat.Send.Login.Register(len(login))

	g.spawn(c.w.heartbeat)
	return c, nil
}

// Receive returns next data packet, see ReadHalf.Receive.
func (c *Conn) Receive(ctx context.Context) (RawPacket, error) { return c.r.Receive(ctx) }

func (c *Conn) Stream(ctx context.Context) *Stream { return c.r.Stream(ctx) }

func (c *Conn) Send(ctx context.Context, p PacketEncoder) error { return c.w.Send(ctx, p) }

func (c *Conn) SetFilter(ctx context.Context, filter string) error {
	return c.w.SetFilter(ctx, filter)
}

// Split hands out independent halves for concurrent use.
// Socket stays open and keep-alive runs until both halves are closed.
// Conn itself must not be used after Split.
func (c *Conn) Split() (*ReadHalf, *WriteHalf) {
	return c.r, c.w
}

// Close releases both halves, stops keep-alive and closes socket. Idempotent.
func (c *Conn) Close() error {
	_ = c.w.Close()
	_ = c.r.Close()
	return nil
}

// Err is the error which ended the receive stream.
func (c *Conn) Err() error { return c.r.Err() }

func (c *Conn) LoginState() LoginState       { return c.r.LoginState() }
func (c *Conn) SinceLastRecv() time.Duration { return c.r.SinceLastRecv() }
func (c *Conn) Stat() *SessionStat           { return &c.stat }
func (c *Conn) Settings() Settings           { return c.settings }
func (c *Conn) RemoteAddr() net.Addr         { return c.net.RemoteAddr() }
func (c *Conn) LocalAddr() net.Addr          { return c.net.LocalAddr() }

func (c *Conn) String() string {
	return fmt.Sprintf("aprsis.Conn(callsign=%s remote=%s login=%s)",
		c.settings.Callsign, addrString(c.net.RemoteAddr()), c.LoginState())
}

func maskPasscode(line, pass string) string {
	if pass == "" {
		return line
	}
	return strings.Replace(line, " pass "+pass+" ", " pass *** ", 1)
}
