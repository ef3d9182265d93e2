package config

import (
	"path/filepath"
	"sync"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/bridge"
	"github.com/temoto/aprsis/helpers"
	"github.com/temoto/aprsis/log2"
)

const (
	DefaultHost = "rotate.aprs2.net"
	DefaultPort = 14580
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	IS struct { //nolint:maligned
		Host              string `hcl:"host"`
		Port              int    `hcl:"port"`
		Callsign          string `hcl:"callsign"`
		Passcode          string `hcl:"passcode"` // secret
		Filter            string `hcl:"filter"`
		ReadTimeoutSec    int    `hcl:"read_timeout_sec"`
		KeepaliveSec      int    `hcl:"keepalive_sec"`
		NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
		ReadLimit         int    `hcl:"read_limit"`
	} `hcl:"is"`

	Bridge struct { //nolint:maligned
		Broker            string `hcl:"broker"`
		ClientID          string `hcl:"client_id"`
		Username          string `hcl:"username"`
		Password          string `hcl:"password"` // secret
		TopicPrefix       string `hcl:"topic_prefix"`
		QoS               int    `hcl:"qos"`
		QueuePath         string `hcl:"queue_path"`
		PublishTimeoutSec int    `hcl:"publish_timeout_sec"`
		LogDebug          bool   `hcl:"log_debug"`
	} `hcl:"bridge"`

	Log struct {
		Debug bool `hcl:"debug"`
	} `hcl:"log"`

	_copy_guard sync.Mutex //nolint:unused
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// ISSettings returns connection settings, empty host and port mean public rotate address.
func (c *Config) ISSettings() aprsis.Settings {
	s := aprsis.NewSettings(c.IS.Host, uint16(c.IS.Port), c.IS.Callsign, c.IS.Passcode, c.IS.Filter)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	return s
}

func (c *Config) ISOptions(log *log2.Log) aprsis.Options {
	return aprsis.Options{
		Log:            log,
		ReadTimeout:    helpers.IntSecondDefault(c.IS.ReadTimeoutSec, aprsis.DefaultReadTimeout),
		Keepalive:      helpers.IntSecondDefault(c.IS.KeepaliveSec, aprsis.DefaultKeepalive),
		NetworkTimeout: helpers.IntSecondDefault(c.IS.NetworkTimeoutSec, aprsis.DefaultNetworkTimeout),
		ReadLimit:      c.IS.ReadLimit,
	}
}

func (c *Config) BridgeOptions(log *log2.Log) bridge.Options {
	mlog := log.Clone(log2.LInfo)
	if c.Bridge.LogDebug {
		mlog.SetLevel(log2.LDebug)
	}
	return bridge.Options{
		Log:            log,
		MqttLog:        mlog,
		Broker:         c.Bridge.Broker,
		ClientID:       c.Bridge.ClientID,
		Username:       c.Bridge.Username,
		Password:       c.Bridge.Password,
		TopicPrefix:    c.Bridge.TopicPrefix,
		QoS:            byte(c.Bridge.QoS),
		QueuePath:      c.Bridge.QueuePath,
		PublishTimeout: helpers.IntSecondDefault(c.Bridge.PublishTimeoutSec, bridge.DefaultPublishTimeout),
	}
}

// LogLevel is debug when log.debug is set.
func (c *Config) LogLevel() log2.Level {
	if c.Log.Debug {
		return log2.LDebug
	}
	return log2.LInfo
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig reads names in order, later values override earlier ones.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.NotValidf("config without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		osfs.SetBase(dir)
		names[0] = name
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
