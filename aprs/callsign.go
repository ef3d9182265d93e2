package aprs

import (
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const (
	maxCallLen = 9
	maxSSID    = 15
)

// Callsign is station identifier with optional SSID, e.g. N0CALL-9.
// APRS-IS allows alphanumeric SSID (OGN, Q-constructs), so SSID is kept as string.
type Callsign struct {
	Call string
	SSID string
}

func NewCallsign(call, ssid string) Callsign { return Callsign{Call: call, SSID: ssid} }

// ParseCallsign accepts CALL or CALL-SSID.
func ParseCallsign(s string) (Callsign, error) {
	call, ssid := s, ""
	if i := strings.IndexByte(s, '-'); i >= 0 {
		call, ssid = s[:i], s[i+1:]
		if ssid == "" {
			return Callsign{}, errors.Annotatef(ErrInvalidCallsign, "empty ssid in %q", s)
		}
	}
	c := Callsign{Call: call, SSID: ssid}
	if err := c.Validate(); err != nil {
		return Callsign{}, err
	}
	return c, nil
}

func MustCallsign(s string) Callsign {
	c, err := ParseCallsign(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Callsign) Validate() error {
	if c.Call == "" || len(c.Call) > maxCallLen {
		return errors.Annotatef(ErrInvalidCallsign, "call=%q length", c.Call)
	}
	if !isAlnum(c.Call) {
		return errors.Annotatef(ErrInvalidCallsign, "call=%q charset", c.Call)
	}
	if c.SSID == "" {
		return nil
	}
	if !isAlnum(c.SSID) || len(c.SSID) > 2 {
		return errors.Annotatef(ErrInvalidCallsign, "ssid=%q", c.SSID)
	}
	if n, err := strconv.Atoi(c.SSID); err == nil && n > maxSSID {
		return errors.Annotatef(ErrInvalidCallsign, "ssid=%q out of range", c.SSID)
	}
	return nil
}

func (c Callsign) String() string {
	if c.SSID == "" {
		return c.Call
	}
	return c.Call + "-" + c.SSID
}

// Equal compares case insensitive, APRS-IS is not consistent about case.
func (c Callsign) Equal(other Callsign) bool {
	return strings.EqualFold(c.Call, other.Call) && strings.EqualFold(c.SSID, other.SSID)
}

// Via is one digipeater or q-construct path element.
// Heard is set for trailing '*'.
type Via struct {
	Call  string
	Heard bool
}

func (v Via) String() string {
	if v.Heard {
		return v.Call + "*"
	}
	return v.Call
}

func parseVia(s string) (Via, error) {
	v := Via{Call: s}
	if strings.HasSuffix(s, "*") {
		v.Call, v.Heard = s[:len(s)-1], true
	}
	if v.Call == "" || !isPathToken(v.Call) {
		return Via{}, errors.Annotatef(ErrInvalidPacket, "via=%q", s)
	}
	return v, nil
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b >= '0' && b <= '9':
		case b >= 'A' && b <= 'Z':
		case b >= 'a' && b <= 'z':
		default:
			return false
		}
	}
	return true
}

func isPathToken(s string) bool {
	for i := 0; i < len(s); i++ {
		if b := s[i]; b == '-' {
			continue
		} else if !isAlnum(s[i : i+1]) {
			return false
		}
	}
	return true
}
