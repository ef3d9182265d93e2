// Package aprs decodes and encodes the TNC2 text form of APRS packets
// as carried by APRS-IS: FROM>TO[,VIA...]:DATA
//
// Only the header is structured. Data is kept as opaque bytes,
// with helpers for the message data type.
package aprs

import (
	"bytes"
	"strings"

	"github.com/juju/errors"
)

var (
	ErrInvalidPacket   = errors.New("invalid packet")
	ErrInvalidCallsign = errors.New("invalid callsign")
)

type Packet struct {
	From Callsign
	To   Callsign
	Via  []Via
	Data []byte
}

// Parse decodes one line without delimiter. Data is copied.
func Parse(raw []byte) (*Packet, error) {
	gt := bytes.IndexByte(raw, '>')
	colon := bytes.IndexByte(raw, ':')
	if gt <= 0 || colon < 0 || colon < gt {
		return nil, errors.Annotatef(ErrInvalidPacket, "header separators in %q", truncate(raw))
	}

	from, err := ParseCallsign(string(raw[:gt]))
	if err != nil {
		return nil, errors.Annotate(err, "from")
	}
	path := strings.Split(string(raw[gt+1:colon]), ",")
	to, err := ParseCallsign(path[0])
	if err != nil {
		return nil, errors.Annotate(err, "to")
	}

	p := &Packet{From: from, To: to}
	if len(path) > 1 {
		p.Via = make([]Via, 0, len(path)-1)
		for _, s := range path[1:] {
			v, err := parseVia(s)
			if err != nil {
				return nil, err
			}
			p.Via = append(p.Via, v)
		}
	}
	p.Data = append([]byte(nil), raw[colon+1:]...)
	return p, nil
}

// Encode implements aprsis.PacketEncoder.
func (p *Packet) Encode() ([]byte, error) {
	if err := p.From.Validate(); err != nil {
		return nil, errors.Annotate(err, "from")
	}
	if err := p.To.Validate(); err != nil {
		return nil, errors.Annotate(err, "to")
	}
	if bytes.ContainsAny(p.Data, "\r\n") {
		return nil, errors.Annotate(ErrInvalidPacket, "data contains line delimiter")
	}

	var b bytes.Buffer
	b.Grow(32 + len(p.Data))
	b.WriteString(p.From.String())
	b.WriteByte('>')
	b.WriteString(p.To.String())
	for _, v := range p.Via {
		if v.Call == "" || !isPathToken(v.Call) {
			return nil, errors.Annotatef(ErrInvalidPacket, "via=%q", v.Call)
		}
		b.WriteByte(',')
		b.WriteString(v.String())
	}
	b.WriteByte(':')
	b.Write(p.Data)
	return b.Bytes(), nil
}

func (p *Packet) String() string {
	b, err := p.Encode()
	if err != nil {
		return "(invalid packet " + err.Error() + ")"
	}
	return string(b)
}

// DataType is the APRS data type identifier, first byte of Data, or 0.
func (p *Packet) DataType() byte {
	if len(p.Data) == 0 {
		return 0
	}
	return p.Data[0]
}

func truncate(b []byte) []byte {
	const max = 64
	if len(b) > max {
		return b[:max]
	}
	return b
}
