package aprsis

// Complex values are read and modified atomically, but not consistently,
// i.e. it is possible to read .Count=1 .Size=0 because Size has not updated yet.

import (
	"expvar"
	"fmt"
)

type SessionStat struct {
	Recv RecvCounters
	Send SendCounters
}

func (ss *SessionStat) String() string {
	return fmt.Sprintf(`{"recv":%s,"send":%s}`, ss.Recv.String(), ss.Send.String())
}

// Add accumulates other into ss, used to keep totals across reconnects.
func (ss *SessionStat) Add(other *SessionStat) {
	ss.Recv.Bytes.Add(other.Recv.Bytes.Value())
	ss.Recv.Packet.Add(&other.Recv.Packet)
	ss.Recv.Status.Add(&other.Recv.Status)
	ss.Recv.Noise.Add(&other.Recv.Noise)
	ss.Send.Bytes.Add(other.Send.Bytes.Value())
	ss.Send.Packet.Add(&other.Send.Packet)
	ss.Send.Keepalive.Add(&other.Send.Keepalive)
	ss.Send.Login.Add(&other.Send.Login)
}

type RecvCounters struct {
	// raw socket bytes including TCP overhead estimate
	Bytes  expvar.Int
	Packet CountSizePair
	Status CountSizePair
	Noise  CountSizePair
}

func (c *RecvCounters) String() string {
	return fmt.Sprintf(`{"bytes":%d,"packet":%s,"status":%s,"noise":%s}`,
		c.Bytes.Value(), c.Packet.String(), c.Status.String(), c.Noise.String())
}

type SendCounters struct {
	Bytes     expvar.Int
	Packet    CountSizePair
	Keepalive CountSizePair
	Login     CountSizePair
}

func (c *SendCounters) String() string {
	return fmt.Sprintf(`{"bytes":%d,"packet":%s,"keepalive":%s,"login":%s}`,
		c.Bytes.Value(), c.Packet.String(), c.Keepalive.String(), c.Login.String())
}

type CountSizePair struct {
	Count expvar.Int
	Size  expvar.Int
}

func (csp *CountSizePair) Register(size int) {
	csp.Count.Add(1)
	csp.Size.Add(int64(size))
}

func (csp *CountSizePair) Add(other *CountSizePair) {
	csp.Count.Add(other.Count.Value())
	csp.Size.Add(other.Size.Value())
}

func (csp *CountSizePair) String() string {
	return fmt.Sprintf(`{"count":%d,"size":%d}`, csp.Count.Value(), csp.Size.Value())
}
