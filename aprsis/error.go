package aprsis

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/juju/errors"
)

// ErrorKind classifies failures so callers need not match strings.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// Transport failure. Fatal to the operation, on read path ends the stream.
	KindIO
	// Server status line was not valid UTF-8. Only that line is lost.
	KindInvalidUTF8
	// No line received within read timeout. Ends the stream.
	KindTimeout
	// Outbound packet could not be serialized. Only that send fails.
	KindEncode
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindInvalidUTF8:
		return "invalid-utf8"
	case KindTimeout:
		return "timeout"
	case KindEncode:
		return "encode"
	}
	return "unknown"
}

// Error is returned by every Conn operation.
// errors.Is(err, ErrTimeout) matches any *Error of the same Kind.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

var (
	ErrIO          = &Error{Kind: KindIO}
	ErrInvalidUTF8 = &Error{Kind: KindInvalidUTF8}
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrEncode      = &Error{Kind: KindEncode}

	// ErrClosing is the cause of KindIO errors on closed connection halves.
	ErrClosing = stderrors.New("closing")
)

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("aprsis")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.String())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// Fatal reports whether error ends the read stream.
func (e *Error) Fatal() bool { return e.Kind == KindIO || e.Kind == KindTimeout }

// KindOf returns the Kind of first *Error found in err chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

func isTimeout(err error) bool {
	if stderrors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return stderrors.As(err, &ne) && ne.Timeout()
}

// shortError reformats some well known errors for easier log reading.
func shortError(e error) string {
	if e == nil {
		return "nil"
	}
	estr := e.Error()
	switch {
	case isTimeout(e), strings.HasSuffix(estr, "i/o timeout"):
		return "timeout"
	case strings.HasSuffix(estr, "connection reset by peer"):
		return "closed by remote"
	case strings.HasSuffix(estr, "use of closed network connection"):
		return "closed"
	}
	return estr
}

var _ fmt.Stringer = KindIO
