// Runs APRS-IS to MQTT bridge, reconnecting to APRS-IS until stopped.
package bridge

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/bridge"
	"github.com/temoto/aprsis/cmd/aprsis/subcmd"
	"github.com/temoto/aprsis/config"
	"github.com/temoto/aprsis/helpers"
)

const modName = "bridge"

var Mod = subcmd.Mod{Name: modName, Main: Main}

func Main(ctx context.Context, cfg *config.Config, args []string) error {
	fs := subcmd.NewFlagSet(modName, "[-once]")
	flagOnce := fs.Bool("once", false, "exit when APRS-IS session ends")
	if err := fs.Parse(args); err != nil {
		return err
	}
	log := subcmd.Log(ctx)

	b, err := bridge.New(cfg.BridgeOptions(log))
	if err != nil {
		return errors.Annotate(err, "bridge")
	}
	defer b.Close()

	a := alive.NewAlive()
	go func() {
		<-ctx.Done()
		a.Stop()
	}()
	backoff := helpers.Backoff{Min: time.Second, Max: 5 * time.Minute, K: 2}
	settings := cfg.ISSettings()
	total := &aprsis.SessionStat{}
	notified := false
	for a.IsRunning() {
		conn, err := aprsis.Connect(ctx, settings, cfg.ISOptions(log))
		if err != nil {
			log.Errorf("connect %s err=%v", settings.Addr(), err)
			backoff.Failure()
		} else {
			if !notified {
				notified = subcmd.SdNotify(daemon.SdNotifyReady)
			}
			backoff.Reset()
			r, w := conn.Split()
			err = b.Run(ctx, r, w)
			_ = conn.Close()
			total.Add(conn.Stat())
			log.Infof("session end err=%v stat=%s bridge=%s", err, conn.Stat(), b.Stat())
		}
		if *flagOnce {
			return err
		}
		if helpers.SleepAlive(ctx, a, backoff.DelayBefore()) != nil {
			break
		}
	}
	log.Infof("total stat=%s", total)
	return nil
}
