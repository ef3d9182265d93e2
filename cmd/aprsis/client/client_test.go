package client

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/temoto/aprsis/aprsis"
)

func TestPrintPacket(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	PrintPacket(&buf, aprsis.RawPacket{Raw: []byte("N0CALL-9>APRS,TCPIP*:>hello")})
	assert.Equal(t, "Source: N0CALL-9\nDestination: APRS\n", buf.String())

	buf.Reset()
	PrintPacket(&buf, aprsis.RawPacket{Raw: []byte("junk")})
	assert.Contains(t, buf.String(), "Error parsing packet")
	assert.Contains(t, buf.String(), `"junk"`)
}
