// Looks for packets from specified callsign and responds with a message,
// at most once per interval.
package ping

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/aprsis/aprs"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/cmd/aprsis/subcmd"
	"github.com/temoto/aprsis/config"
)

const (
	modName            = "ping"
	DefaultMinInterval = 5 * time.Minute
)

var Mod = subcmd.Mod{Name: modName, Main: Main}

func Main(ctx context.Context, cfg *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, "-them CALL -message TEXT")
	flagThem := fs.String("them", "", "callsign to respond to")
	flagMessage := fs.String("message", "", "response text")
	flagInterval := fs.Duration("interval", DefaultMinInterval, "minimum time between responses")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := subcmd.Log(ctx)

	us, err := aprs.ParseCallsign(cfg.IS.Callsign)
	if err != nil {
		return errors.Annotate(err, "callsign")
	}
	them, err := aprs.ParseCallsign(*flagThem)
	if err != nil {
		return errors.Annotate(err, "-them")
	}
	if _, err := (aprs.Message{Addressee: them.String(), Text: *flagMessage}).Encode(); err != nil {
		return errors.Annotate(err, "-message")
	}
	responder := &Responder{Us: us, Them: them, Text: *flagMessage, MinInterval: *flagInterval}

	settings := cfg.ISSettings()
	if settings.Filter == "" {
		settings.Filter = "b/" + them.String()
	}
	conn, err := aprsis.Connect(ctx, settings, cfg.ISOptions(log))
	if err != nil {
		return errors.Annotate(err, "connect")
	}
	r, w := conn.Split()
	defer w.Close()
	defer r.Close()

	s := r.Stream(ctx)
	for s.Next() {
		if err := s.Err(); err != nil {
			log.Errorf("receive err=%v", err)
			continue
		}
		pkt, err := s.Packet().Parsed()
		if err != nil {
			log.Debugf("skip err=%v", err)
			continue
		}
		now := time.Now()
		resp := responder.Handle(pkt, now)
		if resp == nil {
			continue
		}
		log.Infof("received packet: %s", pkt)
		if err := w.Send(ctx, resp); err != nil {
			log.Errorf("send err=%v", err)
			continue
		}
		responder.Sent(now)
		log.Infof("sent packet: %s", resp)
	}
	if err := r.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Responder decides when to answer. Not safe for concurrent use.
type Responder struct {
	Us          aprs.Callsign
	Them        aprs.Callsign
	Text        string
	MinInterval time.Duration

	last time.Time
}

// Handle returns response to p or nil. Text must be valid message text.
// Interval is counted from the last Sent call.
func (r *Responder) Handle(p *aprs.Packet, now time.Time) *aprs.Packet {
	if !p.From.Equal(r.Them) {
		return nil
	}
	if !r.last.IsZero() && now.Sub(r.last) < r.MinInterval {
		return nil
	}
	resp, err := aprs.NewMessage(r.Us, r.Them, []aprs.Via{{Call: "TCPIP", Heard: true}},
		aprs.Message{Addressee: r.Them.String(), Text: r.Text})
	if err != nil {
		return nil
	}
	return resp
}

func (r *Responder) Sent(now time.Time) { r.last = now }
