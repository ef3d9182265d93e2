package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/aprsis/cmd/aprsis/bridge"
	"github.com/temoto/aprsis/cmd/aprsis/client"
	"github.com/temoto/aprsis/cmd/aprsis/ping"
	"github.com/temoto/aprsis/cmd/aprsis/send"
	"github.com/temoto/aprsis/cmd/aprsis/subcmd"
	"github.com/temoto/aprsis/config"
	"github.com/temoto/aprsis/log2"
)

var log = log2.NewStderr(log2.LInfo)

var modules = []subcmd.Mod{
	client.Mod,
	ping.Mod,
	send.Mod,
	bridge.Mod,
}

func main() {
	flagConfig := flag.String("config", "aprsis.hcl", "")
	flagDebug := flag.Bool("debug", false, "")
	flagHost := flag.String("host", "", "override is.host")
	flagPort := flag.Int("port", 0, "override is.port")
	flagCallsign := flag.String("callsign", "", "override is.callsign")
	flagPasscode := flag.String("passcode", "", "override is.passcode")
	flagFilter := flag.String("filter", "", "override is.filter")
	flag.Usage = func() {
		names := make([]string, len(modules))
		for i, m := range modules {
			names[i] = m.Name
		}
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [global flags] {%s} [command flags]\n",
			os.Args[0], strings.Join(names, "|"))
		flag.PrintDefaults()
	}
	flag.Parse()

	log.SetFlags(log2.LInteractiveFlags)
	if subcmd.SdNotify("start") {
		// under systemd, journal adds timestamp
		log.SetFlags(log2.LServiceFlags)
	}

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	cfg := readConfig(*flagConfig, isFlagSet("config"))
	if *flagHost != "" {
		cfg.IS.Host = *flagHost
	}
	if *flagPort != 0 {
		cfg.IS.Port = *flagPort
	}
	if *flagCallsign != "" {
		cfg.IS.Callsign = *flagCallsign
	}
	if *flagPasscode != "" {
		cfg.IS.Passcode = *flagPasscode
	}
	if *flagFilter != "" {
		cfg.IS.Filter = *flagFilter
	}
	log.SetLevel(cfg.LogLevel())
	if *flagDebug {
		log.SetLevel(log2.LDebug)
	}
	log.Debugf("command=%s", mod.Name)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx = context.WithValue(ctx, log2.ContextKey, log)

	if err := mod.Main(ctx, cfg, flag.Args()[1:]); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}

// readConfig tolerates missing default config file, explicit -config must exist.
func readConfig(path string, explicit bool) *config.Config {
	cfg, err := config.ReadConfig(log, config.NewOsFullReader(), path)
	if err != nil {
		if errors.IsNotFound(err) && !explicit {
			log.Debugf("config %s not found, using defaults", path)
			return &config.Config{}
		}
		log.Fatal(errors.ErrorStack(err))
	}
	return cfg
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
