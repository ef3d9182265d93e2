package aprsis

import (
	"net"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/aprsis/log2"
)

const (
	DefaultReadTimeout    = 60 * time.Second
	DefaultKeepalive      = time.Hour
	DefaultNetworkTimeout = 30 * time.Second
	DefaultReadLimit      = 4 << 10

	DefaultClientName = "aprsis"
	modulePath        = "github.com/temoto/aprsis"
)

// Settings identify the server and the station. Immutable after connect.
type Settings struct {
	Host     string
	Port     uint16
	Callsign string
	Passcode string
	// Server side subscription, e.g. r/55/-4/600 or b/N0CALL. Empty means none.
	Filter string
}

func NewSettings(host string, port uint16, callsign, passcode, filter string) Settings {
	return Settings{
		Host:     host,
		Port:     port,
		Callsign: callsign,
		Passcode: passcode,
		Filter:   filter,
	}
}

func (s Settings) Addr() string { return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port))) }

func (s Settings) Validate() error {
	if s.Host == "" || s.Port == 0 {
		return errors.NotValidf("settings address=%s", s.Addr())
	}
	if s.Callsign == "" || strings.ContainsAny(s.Callsign, " \r\n") {
		return errors.NotValidf("settings callsign=%q", s.Callsign)
	}
	if strings.ContainsAny(s.Passcode, " \r\n") || strings.ContainsAny(s.Filter, "\r\n") {
		return errors.NotValidf("settings passcode or filter contains separator")
	}
	return nil
}

// LoginLine is the first line sent to server.
// Filter clause is omitted entirely when Filter is empty.
func (s Settings) LoginLine(name, version string) string {
	var b strings.Builder
	b.Grow(64 + len(s.Filter))
	b.WriteString("user ")
	b.WriteString(s.Callsign)
	b.WriteString(" pass ")
	b.WriteString(s.Passcode)
	b.WriteString(" vers ")
	b.WriteString(name)
	b.WriteString(" ")
	b.WriteString(version)
	if s.Filter != "" {
		b.WriteString(" filter ")
		b.WriteString(s.Filter)
	}
	return b.String()
}

// Options tune connection behavior. Zero values mean defaults.
type Options struct {
	Log    *log2.Log
	Dialer *net.Dialer

	// Silence on read path longer than this ends the stream with ErrTimeout.
	ReadTimeout time.Duration
	// Interval between `# keep alive` lines. Independent from ReadTimeout.
	Keepalive time.Duration
	// Dial and write deadline.
	NetworkTimeout time.Duration
	// Maximum line length in bytes.
	ReadLimit int

	ClientName    string
	ClientVersion string
}

func (o *Options) setDefaults() {
	if o.ReadTimeout == 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.Keepalive == 0 {
		o.Keepalive = DefaultKeepalive
	}
	if o.NetworkTimeout == 0 {
		o.NetworkTimeout = DefaultNetworkTimeout
	}
	if o.ReadLimit == 0 {
		o.ReadLimit = DefaultReadLimit
	}
	if o.ClientName == "" {
		o.ClientName = DefaultClientName
	}
	if o.ClientVersion == "" {
		o.ClientVersion = BuildVersion()
	}
	if o.Dialer == nil {
		o.Dialer = &net.Dialer{Timeout: o.NetworkTimeout}
	}
}

// BuildVersion reports module version from build info, 0.0.0 for development builds.
func BuildVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "0.0.0"
	}
	version := ""
	if bi.Main.Path == modulePath {
		version = bi.Main.Version
	} else {
		for _, dep := range bi.Deps {
			if dep.Path == modulePath {
				version = dep.Version
				break
			}
		}
	}
	if version == "" || version == "(devel)" {
		return "0.0.0"
	}
	return strings.TrimPrefix(version, "v")
}
