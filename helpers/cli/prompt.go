// Package cli runs line oriented interactive loops.
// Terminal gets go-prompt with completion, pipes are read line by line.
package cli

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
	"github.com/temoto/alive/v2"
)

type ExecFunc func(line string)
type CompleteFunc func(d prompt.Document) []prompt.Suggest

// MainLoop blocks until stdin is exhausted, user exits prompt or a is stopped.
// Signals stop a.
func MainLoop(a *alive.Alive, tag string, exec ExecFunc, complete CompleteFunc) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	defer signal.Stop(signalCh)
	go func() {
		select {
		case <-signalCh:
			a.Stop()
		case <-a.StopChan():
		}
	}()

	if complete == nil {
		complete = NoComplete
	}
	guarded := func(line string) {
		if a.IsRunning() {
			exec(line)
		}
	}
	if isatty.IsTerminal(os.Stdin.Fd()) {
		// TODO OptionHistory
		prompt.New(guarded, prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return
	}
	ReadLines(a, os.Stdin, guarded)
}

// ReadLines calls exec for each non-empty trimmed line of r.
func ReadLines(a *alive.Alive, r io.Reader, exec ExecFunc) {
	scanner := bufio.NewScanner(r)
	for a.IsRunning() && scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			exec(line)
		}
	}
}

func NoComplete(prompt.Document) []prompt.Suggest { return nil }
