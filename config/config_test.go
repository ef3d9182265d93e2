package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/aprsis/aprsis"
	"github.com/temoto/aprsis/config"
	"github.com/temoto/aprsis/log2"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		sources   map[string]string
		check     func(testing.TB, *config.Config)
		expectErr string
	}
	cases := []Case{
		{"empty", map[string]string{"main": ""},
			func(t testing.TB, c *config.Config) {
				s := c.ISSettings()
				assert.Equal(t, config.DefaultHost, s.Host)
				assert.Equal(t, uint16(config.DefaultPort), s.Port)
				opt := c.ISOptions(nil)
				assert.Equal(t, aprsis.DefaultReadTimeout, opt.ReadTimeout)
				assert.Equal(t, aprsis.DefaultKeepalive, opt.Keepalive)
				assert.Equal(t, log2.LInfo, c.LogLevel())
			}, ""},

		{"is", map[string]string{"main": `
is {
	host = "euro.aprs2.net"
	port = 10152
	callsign = "N0CALL-7"
	passcode = "12345"
	filter = "r/55/37/100"
	read_timeout_sec = 30
	keepalive_sec = 600
}
log { debug = true }`},
			func(t testing.TB, c *config.Config) {
				s := c.ISSettings()
				assert.Equal(t, "euro.aprs2.net:10152", s.Addr())
				assert.Equal(t, "user N0CALL-7 pass 12345 vers a 1 filter r/55/37/100", s.LoginLine("a", "1"))
				opt := c.ISOptions(nil)
				assert.Equal(t, 30*time.Second, opt.ReadTimeout)
				assert.Equal(t, 10*time.Minute, opt.Keepalive)
				assert.Equal(t, aprsis.DefaultNetworkTimeout, opt.NetworkTimeout)
				assert.Equal(t, log2.LDebug, c.LogLevel())
			}, ""},

		{"include-override", map[string]string{
			"main":  `is { callsign = "N0CALL" } include "local" {}`,
			"local": `is { callsign = "N1CALL" } bridge { topic_prefix = "aprs" qos = 1 }`,
		},
			func(t testing.TB, c *config.Config) {
				assert.Equal(t, "N1CALL", c.IS.Callsign)
				opt := c.BridgeOptions(nil)
				assert.Equal(t, "aprs", opt.TopicPrefix)
				assert.Equal(t, byte(1), opt.QoS)
			}, ""},

		{"include-optional", map[string]string{
			"main": `include "missing" { optional = true }`,
		}, nil, ""},

		{"include-required", map[string]string{
			"main": `include "missing" {}`,
		}, nil, "config required name=missing"},

		{"include-loop", map[string]string{
			"main":  `include "other" {}`,
			"other": `include "main" {}`,
		}, nil, "config include loop"},

		{"syntax", map[string]string{"main": `is {`}, nil, "config unmarshal source=main"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := config.NewMockFullReader(c.sources)
			cfg, err := config.ReadConfig(log, fs, "main")
			if c.expectErr == "" {
				require.NoError(t, err)
				if c.check != nil {
					c.check(t, cfg)
				}
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
			}
		})
	}
}

func TestReadConfigNotFound(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	_, err := config.ReadConfig(log, config.NewMockFullReader(nil), "absent")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "err=%v", err)
}

func TestReadConfigOs(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"),
		[]byte(`is { callsign = "N0CALL" } include "secret.hcl" {}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.hcl"),
		[]byte(`is { passcode = "13023" }`), 0o600))

	cfg, err := config.ReadConfig(log, config.NewOsFullReader(), filepath.Join(dir, "main.hcl"))
	require.NoError(t, err)
	s := cfg.ISSettings()
	assert.Equal(t, "N0CALL", s.Callsign)
	assert.Equal(t, "13023", s.Passcode)
	assert.True(t, strings.HasPrefix(s.LoginLine("a", "1"), "user N0CALL pass 13023 "))
}
