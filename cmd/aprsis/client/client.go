// Prints source and destination of every packet received.
package client

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/aprsis/aprs"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/cmd/aprsis/subcmd"
	"github.com/temoto/aprsis/config"
)

const modName = "client"

var Mod = subcmd.Mod{Name: modName, Main: Main}

func Main(ctx context.Context, cfg *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, "[-raw]")
	flagRaw := fs.Bool("raw", false, "print lines as received")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := subcmd.Log(ctx)

	conn, err := aprsis.Connect(ctx, cfg.ISSettings(), cfg.ISOptions(log))
	if err != nil {
		return errors.Annotate(err, "connect")
	}
	defer conn.Close()
	log.Infof("connected %s", conn)

	s := conn.Stream(ctx)
	for s.Next() {
		if err := s.Err(); err != nil {
			log.Errorf("receive err=%v", err)
			continue
		}
		if *flagRaw {
			fmt.Fprintln(os.Stdout, aprs.DecodeText(s.Packet().Raw))
			continue
		}
		PrintPacket(os.Stdout, s.Packet())
	}
	log.Infof("stat=%s", conn.Stat())
	if err := conn.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func PrintPacket(w io.Writer, p aprsis.RawPacket) {
	parsed, err := p.Parsed()
	if err != nil {
		fmt.Fprintf(w, "Error parsing packet: %v\n%q\n", err, aprs.DecodeText(p.Raw))
		return
	}
	fmt.Fprintf(w, "Source: %s\nDestination: %s\n", parsed.From, parsed.To)
}
