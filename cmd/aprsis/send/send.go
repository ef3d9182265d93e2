// Sends APRS messages. One with -message, otherwise every input line is a message.
package send

import (
	"context"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/aprsis/aprs"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/cmd/aprsis/subcmd"
	"github.com/temoto/aprsis/config"
	"github.com/temoto/aprsis/helpers/cli"
	"github.com/temoto/aprsis/log2"
)

const modName = "send"

const usage = `-to CALL [-message TEXT]
without -message, each input line is sent as message text
- /to CALL   change addressee
- /filter F  change server side filter`

var Mod = subcmd.Mod{Name: modName, Main: Main}

func Main(ctx context.Context, cfg *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, usage)
	flagTo := fs.String("to", "", "addressee callsign")
	flagMessage := fs.String("message", "", "message text")
	flagDest := fs.String("dest", "APRS", "destination (tocall)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := subcmd.Log(ctx)

	from, err := aprs.ParseCallsign(cfg.IS.Callsign)
	if err != nil {
		return errors.Annotate(err, "callsign")
	}
	dest, err := aprs.ParseCallsign(*flagDest)
	if err != nil {
		return errors.Annotate(err, "-dest")
	}
	s := &Sender{From: from, Dest: dest, To: *flagTo}
	if _, err = s.Packet("probe"); err != nil {
		return errors.Annotate(err, "-to")
	}

	conn, err := aprsis.Connect(ctx, cfg.ISSettings(), cfg.ISOptions(log))
	if err != nil {
		return errors.Annotate(err, "connect")
	}
	r, w := conn.Split()
	defer w.Close()

	if *flagMessage != "" {
		defer r.Close()
		p, err := s.Packet(*flagMessage)
		if err != nil {
			return err
		}
		if err = w.Send(ctx, p); err != nil {
			return err
		}
		log.Infof("sent %s", p)
		return nil
	}

	a := alive.NewAlive()
	go func() {
		select {
		case <-ctx.Done():
			a.Stop()
		case <-a.StopChan():
		}
	}()
	// drain inbound so server does not drop us, stream end stops input loop
	go func() {
		defer a.Stop()
		defer r.Close()
		st := r.Stream(ctx)
		for st.Next() {
			if err := st.Err(); err != nil {
				log.Errorf("receive err=%v", err)
				continue
			}
			log.Debugf("received %s", st.Packet())
		}
	}()
	cli.MainLoop(a, modName, newExecutor(ctx, log, s, w), newCompleter())
	a.Stop()
	_ = r.Close()
	return nil
}

// Sender turns text lines into message packets.
type Sender struct {
	From aprs.Callsign
	Dest aprs.Callsign
	To   string
}

func (s *Sender) Packet(text string) (*aprs.Packet, error) {
	return aprs.NewMessage(s.From, s.Dest, []aprs.Via{{Call: "TCPIP", Heard: true}},
		aprs.Message{Addressee: strings.ToUpper(s.To), Text: text})
}

func newCompleter() cli.CompleteFunc {
	suggests := []prompt.Suggest{
		{Text: "/to", Description: "change addressee"},
		{Text: "/filter", Description: "change server side filter"},
	}
	return func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
	}
}

func newExecutor(ctx context.Context, log *log2.Log, s *Sender, w *aprsis.WriteHalf) cli.ExecFunc {
	return func(line string) {
		switch {
		case strings.HasPrefix(line, "/to "):
			s.To = strings.TrimSpace(line[4:])
			log.Infof("addressee=%s", s.To)
			return
		case strings.HasPrefix(line, "/filter "):
			if err := w.SetFilter(ctx, strings.TrimSpace(line[8:])); err != nil {
				log.Errorf("filter err=%v", err)
			}
			return
		}
		p, err := s.Packet(line)
		if err != nil {
			log.Errorf("message err=%v", err)
			return
		}
		if err = w.Send(ctx, p); err != nil {
			log.Errorf("send err=%v", err)
			return
		}
		log.Infof("sent %s", p)
	}
}
