package bridge_test

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

type MqttMock struct {
	Opt *mqtt.ClientOptions
	Pub chan MockMsg

	mu       sync.Mutex
	subs     []MockSub
	failNext int
}
type MockSub struct {
	Pattern string
	Qos     byte
	Handler mqtt.MessageHandler
}

func NewMqttMock() *MqttMock {
	return &MqttMock{
		Pub:  make(chan MockMsg, 32),
		subs: make([]MockSub, 0, 16),
	}
}

func (self *MqttMock) MockNew(opt *mqtt.ClientOptions) mqtt.Client {
	self.Opt = opt
	return self
}

// FailPublish makes next n Publish calls return error token.
func (self *MqttMock) FailPublish(n int) {
	self.mu.Lock()
	self.failNext = n
	self.mu.Unlock()
}

func (self *MqttMock) TestPublish(t testing.TB, topic string, payload []byte) {
	self.mu.Lock()
	subs := append([]MockSub(nil), self.subs...)
	self.mu.Unlock()
	for _, sub := range subs {
		if topic == sub.Pattern {
			sub.Handler(self, MockMsg{T: topic, P: payload})
			return
		}
	}
	t.Errorf("not subscribed for topic=%s", topic)
}

func (self *MqttMock) Disconnect(uint)        {}
func (self *MqttMock) IsConnected() bool      { return true }
func (self *MqttMock) IsConnectionOpen() bool { return true }

func (self *MqttMock) Connect() mqtt.Token {
	if self.Opt != nil && self.Opt.OnConnect != nil {
		self.Opt.OnConnect(self)
	}
	return mockToken{nil}
}

func (self *MqttMock) Publish(topic string, qos byte, retain bool, payload interface{}) mqtt.Token {
	self.mu.Lock()
	fail := self.failNext > 0
	if fail {
		self.failNext--
	}
	self.mu.Unlock()
	if fail {
		return mockToken{errors.New("mock publish failure")}
	}
	self.Pub <- MockMsg{T: topic, P: payload.([]byte)}
	return mockToken{nil}
}

func (self *MqttMock) Subscribe(pattern string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	self.mu.Lock()
	self.subs = append(self.subs, MockSub{pattern, qos, handler})
	self.mu.Unlock()
	return mockToken{nil}
}

func (self *MqttMock) AddRoute(string, mqtt.MessageHandler) { panic("not implemented") }

func (self *MqttMock) OptionsReader() mqtt.ClientOptionsReader {
	panic("not implemented")
}

func (self *MqttMock) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (self *MqttMock) Unsubscribe(...string) mqtt.Token { return mockToken{nil} }

type mockToken struct{ error }

func (tok mockToken) Error() error                   { return tok.error }
func (tok mockToken) Wait() bool                     { return true }
func (tok mockToken) WaitTimeout(time.Duration) bool { return true }
func (tok mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type MockMsg struct {
	T string
	P []byte
}

func (msg MockMsg) Ack()              {}
func (msg MockMsg) Duplicate() bool   { return false }
func (msg MockMsg) MessageID() uint16 { return 0 }
func (msg MockMsg) Payload() []byte   { return msg.P }
func (msg MockMsg) Qos() byte         { return 0 }
func (msg MockMsg) Retained() bool    { return false }
func (msg MockMsg) Topic() string     { return msg.T }
