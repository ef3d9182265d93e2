package bridge_test

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/256dpi/gomqtt/packet"
	"github.com/256dpi/gomqtt/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
	"github.com/temoto/aprsis/bridge"
	"github.com/temoto/aprsis/log2"
	"github.com/temoto/spq"
)

// Real MQTT client against minimal broker: connect, subscribe, publish with ack.
func TestBridgeBroker(t *testing.T) {
	t.Parallel()
	const timeout = 5 * time.Second
	// log := log2.NewTest(t, log2.LDebug)
	log := log2.NewStderr(log2.LDebug) // MQTT library goroutines may outlive test
	log.SetFlags(log2.Lmicroseconds | log2.Lshortfile)

	ln, err := net.Listen("tcp", "127.0.0.1:")
	require.NoError(t, err)
	defer ln.Close()
	subscribed := make(chan string, 1)
	published := make(chan packet.Message, 8)
	var broker *transport.NetConn
	brokerAlive := alive.NewAlive()
	brokerAlive.Add(1)
	go func() {
		defer brokerAlive.Done()
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		assert.NoError(t, conn.SetDeadline(time.Now().Add(timeout)))
		broker = transport.NewNetConn(conn)
		mockBroker(t, broker, subscribed, published)
	}()

	b, err := bridge.New(bridge.Options{
		Log:            log.ClonePrefix("bridge: "),
		Broker:         fmt.Sprintf("tcp://%s", ln.Addr()),
		ClientID:       "test",
		TopicPrefix:    "aprs",
		QoS:            1,
		QueuePath:      spq.OnlyForTesting,
		PublishTimeout: timeout,
	})
	require.NoError(t, err)

	select {
	case topic := <-subscribed:
		assert.Equal(t, "aprs/tx", topic)
	case <-time.After(timeout):
		t.Fatal("no subscribe")
	}

	require.NoError(t, b.Push([]byte("N0CALL-5>APRS:!5500.00N/03700.00E-")))
	m := <-published
	assert.Equal(t, "aprs/rx/N0CALL-5", m.Topic)
	assert.Equal(t, "N0CALL-5>APRS:!5500.00N/03700.00E-", string(m.Payload))
	assert.Equal(t, packet.QOSAtLeastOnce, m.QOS)

	// tx without APRS-IS connection is reported back
	pub := packet.NewPublish()
	pub.Message = packet.Message{Topic: "aprs/tx", Payload: []byte("N0CALL>APRS::N1CALL   :hi")}
	require.NoError(t, broker.Send(pub, false))
	m = <-published
	assert.Equal(t, "aprs/tx/error", m.Topic)
	assert.True(t, strings.Contains(string(m.Payload), "not running"), "payload=%q", m.Payload)

	require.NoError(t, b.Close())
	brokerAlive.Wait()
}

func mockBroker(t testing.TB, b *transport.NetConn, subscribed chan<- string, published chan<- packet.Message) {
	for {
		pkt, err := b.Receive()
		if err != nil {
			return
		}
		switch pt := pkt.(type) {
		case *packet.Connect:
			connack := packet.NewConnack()
			connack.ReturnCode = packet.ConnectionAccepted
			assert.NoError(t, b.Send(connack, false))

		case *packet.Subscribe:
			suback := packet.NewSuback()
			suback.ID = pt.ID
			for _, sub := range pt.Subscriptions {
				suback.ReturnCodes = append(suback.ReturnCodes, sub.QOS)
			}
			assert.NoError(t, b.Send(suback, false))
			subscribed <- pt.Subscriptions[0].Topic

		case *packet.Unsubscribe:
			unsuback := packet.NewUnsuback()
			unsuback.ID = pt.ID
			assert.NoError(t, b.Send(unsuback, false))

		case *packet.Publish:
			if pt.Message.QOS == packet.QOSAtLeastOnce {
				puback := packet.NewPuback()
				puback.ID = pt.ID
				assert.NoError(t, b.Send(puback, false))
			}
			published <- pt.Message

		case *packet.Pingreq:
			assert.NoError(t, b.Send(packet.NewPingresp(), false))

		case *packet.Disconnect:
			return
		}
	}
}
