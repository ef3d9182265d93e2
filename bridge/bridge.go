// Package bridge relays APRS-IS traffic to MQTT and back.
//
// Inbound lines go through persistent queue first, so broker outage
// does not block the APRS-IS reader and nothing is lost across restarts.
// Queue item is deleted only after broker acknowledged publish.
//
// Topics:
// - <prefix>/rx/<FROM>    inbound packet, payload is raw line
// - <prefix>/rx/_invalid  inbound line which could not be parsed
// - <prefix>/tx           subscribed, payload is one packet to send
// - <prefix>/tx/error     why a tx payload was not sent
package bridge

import (
	"context"
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/aprsis/aprs"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/helpers"
	"github.com/temoto/aprsis/log2"
	"github.com/temoto/spq"
)

const (
	DefaultPublishTimeout = 10 * time.Second
	DefaultKeepalive      = 60 * time.Second
	DefaultRetryMin       = time.Second
	DefaultRetryMax       = time.Minute

	TopicInvalid = "_invalid"
)

type Options struct {
	Log *log2.Log
	// installed as paho logger, nil means silent
	MqttLog *log2.Log

	Broker      string // tcp://host:1883
	ClientID    string
	Username    string
	Password    string // secret
	TopicPrefix string
	QoS         byte
	// spq.OnlyForTesting keeps queue in memory
	QueuePath string

	PublishTimeout time.Duration
	Keepalive      time.Duration
	RetryMin       time.Duration
	RetryMax       time.Duration

	// test code sets NewClient
	NewClient func(*mqtt.ClientOptions) mqtt.Client
}

func (o *Options) validate() error {
	if o.Broker == "" {
		return errors.NotValidf("bridge broker=empty")
	}
	if o.TopicPrefix == "" {
		return errors.NotValidf("bridge topic_prefix=empty")
	}
	if o.QoS > 2 {
		return errors.NotValidf("bridge qos=%d", o.QoS)
	}
	if o.QueuePath == "" {
		return errors.NotValidf("bridge queue_path=empty")
	}
	return nil
}

func (o *Options) setDefaults() {
	if o.PublishTimeout == 0 {
		o.PublishTimeout = DefaultPublishTimeout
	}
	if o.Keepalive == 0 {
		o.Keepalive = DefaultKeepalive
	}
	if o.RetryMin == 0 {
		o.RetryMin = DefaultRetryMin
	}
	if o.RetryMax == 0 {
		o.RetryMax = DefaultRetryMax
	}
	if o.ClientID == "" {
		o.ClientID = "aprsis-bridge"
	}
	if o.NewClient == nil {
		o.NewClient = mqtt.NewClient
	}
}

type Stat struct {
	Queued    expvar.Int
	Published expvar.Int
	Invalid   expvar.Int
	Retry     expvar.Int
	Tx        expvar.Int
	TxError   expvar.Int
}

func (s *Stat) String() string {
	return fmt.Sprintf(`{"queued":%d,"published":%d,"invalid":%d,"retry":%d,"tx":%d,"tx_error":%d}`,
		s.Queued.Value(), s.Published.Value(), s.Invalid.Value(), s.Retry.Value(), s.Tx.Value(), s.TxError.Value())
}

// Bridge contract:
// - New fails only with invalid options or queue open error, broker issues are retried in background
// - Run blocks until APRS-IS stream ends
// - inbound packets are published at least once
// - tx commands are best effort, failures reported to <prefix>/tx/error
type Bridge struct {
	alive     *alive.Alive
	log       *log2.Log
	opt       Options
	m         mqtt.Client
	q         *spq.Queue
	backoff   helpers.Backoff
	w         atomic.Value // *aprsis.WriteHalf
	closeOnce sync.Once
	stat      Stat

	topicRx      string
	topicTx      string
	topicTxError string
}

func New(opt Options) (*Bridge, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	opt.setDefaults()

	b := &Bridge{
		alive: alive.NewAlive(),
		log:   opt.Log,
		opt:   opt,
		backoff: helpers.Backoff{
			Min: opt.RetryMin,
			Max: opt.RetryMax,
			K:   2,
		},
		topicRx:      opt.TopicPrefix + "/rx/",
		topicTx:      opt.TopicPrefix + "/tx",
		topicTxError: opt.TopicPrefix + "/tx/error",
	}

	var err error
	b.q, err = spq.Open(opt.QueuePath)
	if err != nil {
		return nil, errors.Annotate(err, "bridge queue")
	}

	if opt.MqttLog != nil {
		mqtt.CRITICAL = opt.MqttLog
		mqtt.ERROR = opt.MqttLog
		mqtt.WARN = opt.MqttLog
		if opt.MqttLog.Enabled(log2.LDebug) {
			mqtt.DEBUG = opt.MqttLog
		}
	}
	mopt := mqtt.NewClientOptions().
		AddBroker(opt.Broker).
		SetClientID(opt.ClientID).
		SetUsername(opt.Username).
		SetPassword(opt.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(opt.RetryMax).
		SetConnectTimeout(opt.PublishTimeout).
		SetKeepAlive(opt.Keepalive).
		SetPingTimeout(opt.PublishTimeout).
		SetWriteTimeout(opt.PublishTimeout).
		SetOrderMatters(false).
		SetDefaultPublishHandler(b.onUnexpected).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onConnectionLost)
	b.m = opt.NewClient(mopt)

	b.alive.Add(2)
	go b.connectWorker()
	go b.qworker()
	return b, nil
}

// Run relays stream of r into queue until it ends, and sends tx commands through w.
// Returns the error which ended the stream, nil on clean end of stream.
// Does not close r or w.
func (b *Bridge) Run(ctx context.Context, r *aprsis.ReadHalf, w *aprsis.WriteHalf) error {
	b.w.Store(w)
	defer b.w.Store((*aprsis.WriteHalf)(nil))

	s := r.Stream(ctx)
	for s.Next() {
		if err := s.Err(); err != nil {
			b.log.Errorf("bridge receive err=%v", err)
			continue
		}
		if err := b.Push(s.Packet().Raw); err != nil {
			return errors.Annotate(err, "bridge queue push")
		}
	}
	return r.Err()
}

// Push queues one inbound line for publishing.
func (b *Bridge) Push(raw []byte) error {
	if err := b.q.Push(raw); err != nil {
		return err
	}
	b.stat.Queued.Add(1)
	return nil
}

func (b *Bridge) Stat() *Stat { return &b.stat }

// Close stops queue worker and disconnects from broker.
// Unpublished lines stay in persistent queue.
func (b *Bridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.alive.Stop()
		err = b.q.Close()
		b.alive.Wait()
		if b.m.IsConnected() {
			b.m.Unsubscribe(b.topicTx).WaitTimeout(b.opt.PublishTimeout)
		}
		b.m.Disconnect(uint(b.opt.PublishTimeout / time.Millisecond / 10))
	})
	return err
}

// Topic returns where raw line is published.
func (b *Bridge) Topic(raw []byte) string {
	p, err := aprs.Parse(raw)
	if err != nil {
		return b.topicRx + TopicInvalid
	}
	return b.topicRx + p.From.String()
}

// connectWorker retries initial connect, later reconnects are done by MQTT library.
func (b *Bridge) connectWorker() {
	defer b.alive.Done()
	backoff := helpers.Backoff{Min: b.opt.RetryMin, Max: b.opt.RetryMax, K: 2}
	for b.alive.IsRunning() {
		token := b.m.Connect()
		if !token.WaitTimeout(b.opt.PublishTimeout) {
			b.log.Errorf("bridge mqtt connect broker=%s timeout", b.opt.Broker)
		} else if err := token.Error(); err != nil {
			b.log.Errorf("bridge mqtt connect broker=%s err=%v", b.opt.Broker, err)
		} else {
			return
		}
		if helpers.SleepAlive(context.Background(), b.alive, backoff.DelayAfter(false)) != nil {
			return
		}
	}
}

func (b *Bridge) qworker() {
	defer b.alive.Done()
	for {
		box, err := b.q.Peek()
		switch err {
		case nil:
			// success path
			raw := box.Bytes()
			if err = b.publish(raw); err == nil {
				b.backoff.Reset()
				if err = b.q.Delete(box); err != nil {
					b.log.Errorf("bridge queue Delete b=%q err=%v", raw, err)
				}
				continue
			}
			b.log.Errorf("bridge publish b=%q err=%v", raw, err)
			b.stat.Retry.Add(1)
			if err = b.q.DeletePush(box); err != nil {
				b.log.Errorf("bridge queue DeletePush b=%q err=%v", raw, err)
			}
			if helpers.SleepAlive(context.Background(), b.alive, b.backoff.DelayAfter(false)) != nil {
				return
			}

		case spq.ErrClosed:
			if b.alive.IsRunning() {
				b.log.Errorf("CRITICAL bridge queue closed unexpectedly")
			}
			return

		default:
			b.log.Errorf("CRITICAL bridge queue err=%v", err)
			if helpers.SleepAlive(context.Background(), b.alive, b.opt.RetryMax) != nil {
				return
			}
		}
	}
}

func (b *Bridge) publish(raw []byte) error {
	topic := b.Topic(raw)
	token := b.m.Publish(topic, b.opt.QoS, false, raw)
	if !token.WaitTimeout(b.opt.PublishTimeout) {
		return errors.Timeoutf("publish topic=%s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Annotatef(err, "publish topic=%s", topic)
	}
	if topic == b.topicRx+TopicInvalid {
		b.stat.Invalid.Add(1)
	}
	b.stat.Published.Add(1)
	return nil
}

func (b *Bridge) onConnect(c mqtt.Client) {
	b.log.Infof("bridge mqtt connected broker=%s", b.opt.Broker)
	token := c.Subscribe(b.topicTx, b.opt.QoS, b.onTx)
	if !token.WaitTimeout(b.opt.PublishTimeout) {
		b.log.Errorf("bridge mqtt subscribe topic=%s timeout", b.topicTx)
		return
	}
	if err := token.Error(); err != nil {
		b.log.Errorf("bridge mqtt subscribe topic=%s err=%v", b.topicTx, err)
	}
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	b.log.Errorf("bridge mqtt connection lost err=%v", err)
}

func (b *Bridge) onUnexpected(_ mqtt.Client, msg mqtt.Message) {
	b.log.Errorf("bridge unexpected mqtt message topic=%s", msg.Topic())
}

func (b *Bridge) onTx(_ mqtt.Client, msg mqtt.Message) {
	payload := msg.Payload()
	b.log.Debugf("bridge tx %q", payload)
	if err := b.tx(payload); err != nil {
		b.stat.TxError.Add(1)
		b.log.Errorf("bridge tx b=%q err=%v", payload, err)
		report := fmt.Sprintf("%s\n%s", payload, err.Error())
		b.m.Publish(b.topicTxError, b.opt.QoS, false, []byte(report))
		return
	}
	b.stat.Tx.Add(1)
}

func (b *Bridge) tx(payload []byte) error {
	p, err := aprs.Parse(payload)
	if err != nil {
		return err
	}
	w, _ := b.w.Load().(*aprsis.WriteHalf)
	if w == nil {
		return errors.Errorf("APRS-IS connection is not running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.opt.PublishTimeout)
	defer cancel()
	return w.Send(ctx, p)
}
