package ping

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/aprsis/aprs"
)

func TestResponder(t *testing.T) {
	t.Parallel()
	r := &Responder{
		Us:          aprs.MustCallsign("N0CALL-1"),
		Them:        aprs.MustCallsign("N1CALL"),
		Text:        "pong",
		MinInterval: 5 * time.Minute,
	}
	fromThem, err := aprs.Parse([]byte("N1CALL>APRS,TCPIP*:>here"))
	require.NoError(t, err)
	fromOther, err := aprs.Parse([]byte("N2CALL>APRS,TCPIP*:>here"))
	require.NoError(t, err)
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Nil(t, r.Handle(fromOther, t0))

	resp := r.Handle(fromThem, t0)
	require.NotNil(t, resp)
	b, err := resp.Encode()
	require.NoError(t, err)
	assert.Equal(t, "N0CALL-1>N1CALL,TCPIP*::N1CALL   :pong", string(b))
	r.Sent(t0)

	assert.Nil(t, r.Handle(fromThem, t0.Add(time.Minute)))
	assert.Nil(t, r.Handle(fromThem, t0.Add(5*time.Minute-time.Second)))
	assert.NotNil(t, r.Handle(fromThem, t0.Add(5*time.Minute)))
}

func TestResponderSendFailed(t *testing.T) {
	t.Parallel()
	r := &Responder{
		Us:          aprs.MustCallsign("N0CALL-1"),
		Them:        aprs.MustCallsign("N1CALL"),
		Text:        "pong",
		MinInterval: 5 * time.Minute,
	}
	fromThem, err := aprs.Parse([]byte("N1CALL>APRS,TCPIP*:>here"))
	require.NoError(t, err)
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	// no Sent: previous reply never left
	require.NotNil(t, r.Handle(fromThem, t0))
	require.NotNil(t, r.Handle(fromThem, t0.Add(time.Second)))

	r.Sent(t0.Add(time.Second))
	assert.Nil(t, r.Handle(fromThem, t0.Add(2*time.Second)))
}
