package aprsis

import "bytes"

// LineCodec frames a byte stream into lines delimited by '\n'.
// One trailing '\r' is stripped on decode and never emitted on encode.
//
// nextIndex remembers how much of the pending buffer was already scanned,
// so repeated partial reads don't rescan checked bytes.
// It is reset to zero after every extracted line.
type LineCodec struct {
	nextIndex int
}

// Decode extracts the first line from buf.
// advance is the number of bytes consumed including delimiter.
// ok=false means buf holds no complete line yet and caller must supply more bytes
// while keeping buf prefix intact.
func (c *LineCodec) Decode(buf []byte) (advance int, line []byte, ok bool) {
	if c.nextIndex > len(buf) {
		// buffer was replaced under us
		c.nextIndex = 0
	}
	if i := bytes.IndexByte(buf[c.nextIndex:], '\n'); i >= 0 {
		end := c.nextIndex + i
		c.nextIndex = 0
		return end + 1, withoutCR(buf[:end]), true
	}
	c.nextIndex = len(buf)
	return 0, nil, false
}

// DecodeEOF is Decode for the final buffer after source is exhausted.
// Unterminated residue becomes the last line, unless it is empty or lone '\r'.
func (c *LineCodec) DecodeEOF(buf []byte) (advance int, line []byte, ok bool) {
	if advance, line, ok = c.Decode(buf); ok {
		return advance, line, ok
	}
	c.nextIndex = 0
	if len(buf) == 0 || (len(buf) == 1 && buf[0] == '\r') {
		return len(buf), nil, false
	}
	return len(buf), withoutCR(buf), true
}

// Split implements bufio.SplitFunc.
// Empty lines are returned as empty non-nil tokens.
func (c *LineCodec) Split(data []byte, atEOF bool) (int, []byte, error) {
	var advance int
	var line []byte
	var ok bool
	if atEOF {
		advance, line, ok = c.DecodeEOF(data)
	} else {
		advance, line, ok = c.Decode(data)
	}
	if !ok {
		return advance, nil, nil
	}
	if line == nil {
		line = data[:0]
	}
	return advance, line, nil
}

// Encode appends line and delimiter to dst. Payload is never escaped.
func (c *LineCodec) Encode(dst, line []byte) []byte {
	dst = append(dst, line...)
	return append(dst, '\n')
}

func withoutCR(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\r' {
		return b[:n-1]
	}
	return b
}
