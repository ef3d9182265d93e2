package aprsis

import "github.com/temoto/aprsis/aprs"

// RawPacket is one undecoded data line, delimiter excluded.
// Caller owns Raw.
type RawPacket struct {
	Raw []byte
}

// Parsed decodes the packet on demand. Malformed lines fail here,
// never on the stream.
func (p RawPacket) Parsed() (*aprs.Packet, error) { return aprs.Parse(p.Raw) }

func (p RawPacket) String() string { return string(p.Raw) }

// PacketEncoder serializes outbound packet to a single line without delimiter.
// *aprs.Packet implements it.
type PacketEncoder interface {
	Encode() ([]byte, error)
}

// LineEncoder sends preformatted line as is.
type LineEncoder []byte

func (l LineEncoder) Encode() ([]byte, error) { return l, nil }

var _ PacketEncoder = &aprs.Packet{}
