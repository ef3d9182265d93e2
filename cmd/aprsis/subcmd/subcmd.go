// Support sub-commands in aprsis application.
// It's simple but fine so far.
package subcmd

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/aprsis/config"
	"github.com/temoto/aprsis/log2"
)

type Mod struct {
	Name string
	// args are command line arguments after sub-command name
	Main func(ctx context.Context, cfg *config.Config, args []string) error
}

func Parse(command string, modules []Mod) (*Mod, error) {
	if command == "" {
		return nil, fmt.Errorf("empty command")
	}

	var found *Mod
	for i := range modules {
		m := &modules[i]
		if m.Name == "" {
			panic(fmt.Sprintf("code error Name='' module=%#v", m))
		}
		if command == m.Name {
			found = m
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("unknown command='%s'", command)
	}
	return found, nil
}

// NewFlagSet returns sub-command flags which print usage and return error on parse failure.
func NewFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: aprsis [global flags] %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}

// Log returns logger stored in ctx by main, stderr logger if absent.
func Log(ctx context.Context) *log2.Log {
	if log := log2.ContextValueLogger(ctx); log != nil {
		return log
	}
	return log2.NewStderr(log2.LInfo)
}

func SdNotify(s string) bool {
	ok, err := daemon.SdNotify(false, s)
	if err != nil {
		log.Fatal("sdnotify: ", errors.ErrorStack(err))
	}
	return ok
}
