package send

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/aprsis/aprs"
	"github.com/temoto/aprsis/helpers/cli"
)

func TestSenderPacket(t *testing.T) {
	t.Parallel()
	s := &Sender{From: aprs.MustCallsign("N0CALL-7"), Dest: aprs.MustCallsign("APRS"), To: "n1call"}
	p, err := s.Packet("hello")
	require.NoError(t, err)
	assert.Equal(t, "N0CALL-7>APRS,TCPIP*::N1CALL   :hello", p.String())

	s.To = ""
	_, err = s.Packet("hello")
	assert.Error(t, err)
}

func TestSenderLines(t *testing.T) {
	t.Parallel()
	s := &Sender{From: aprs.MustCallsign("N0CALL"), Dest: aprs.MustCallsign("APRS"), To: "N1CALL"}
	var sent []string
	exec := func(line string) {
		if strings.HasPrefix(line, "/to ") {
			s.To = line[4:]
			return
		}
		p, err := s.Packet(line)
		require.NoError(t, err)
		sent = append(sent, p.String())
	}
	cli.ReadLines(alive.NewAlive(), strings.NewReader("one\n\n/to N2CALL\n two \n"), exec)
	assert.Equal(t, []string{
		"N0CALL>APRS,TCPIP*::N1CALL   :one",
		"N0CALL>APRS,TCPIP*::N2CALL   :two",
	}, sent)
}
