// Package config loads the server's configuration from flags and
// environment variables (it reads no configuration file), via the same
// spf13/viper + spf13/pflag + spf13/cobra combination the rest of the
// retrieval pack wires for CLI tools.
package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/relaynet-go/relaynet/conn"
)

// Config is the full server configuration: the per-connection
// reliability parameters plus the bind and instrumentation surface.
type Config struct {
	BindAddress   string
	MetricsAddress string
	MaxConnections int

	Connection conn.Config
}

// Validate rejects a configuration that would make the server
// unusable, wrapping the first violation with its field name.
func (c Config) Validate() error {
	if c.BindAddress == "" {
		return errors.New("config: bind address must not be empty")
	}
	if c.Connection.SendRate <= 0 {
		return errors.New("config: connection.send_rate must be positive")
	}
	if c.Connection.PacketMaxSize <= 14 {
		return errors.New("config: connection.packet_max_size must exceed the 14-byte header")
	}
	if c.MaxConnections < 0 {
		return errors.New("config: max_connections must not be negative")
	}
	return nil
}

// RegisterFlags binds this package's flags onto fs, for a cobra
// command's PersistentFlags or Flags.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("bind", "0.0.0.0:9142", "UDP address to bind the relay socket to")
	fs.String("metrics-addr", "127.0.0.1:9142", "address to serve Prometheus metrics on")
	fs.Int("max-connections", 4096, "maximum concurrent connections")

	fs.Int("send-rate", 30, "target outbound packets per second")
	fs.Int("packet-max-size", 1400, "maximum encoded datagram size in bytes, header included")
	fs.Duration("packet-drop-threshold", 1000*time.Millisecond, "age at which an unacknowledged datagram is judged lost")
	fs.Duration("connection-drop-threshold", 1000*time.Millisecond, "silence after which a connection is judged Lost")
	fs.Duration("connection-closing-threshold", 100*time.Millisecond, "how long a Closing connection keeps emitting close markers")
	fs.Duration("congestion-rtt-threshold", 250*time.Millisecond, "smoothed RTT above which a connection is considered congested")
	fs.Int("congestion-divider", 2, "send only 1 of every N ticks while congested")
}

// Load builds a Config from v, which must already have RegisterFlags'
// flags bound via BindPFlags, env vars prefixed RELAYD_, and an
// optional config file merged in by the caller.
func Load(v *viper.Viper) (Config, error) {
	var tag [4]byte
	copy(tag[:], []byte{0x01, 0x02, 0x03, 0x04})

	cfg := Config{
		BindAddress:    v.GetString("bind"),
		MetricsAddress: v.GetString("metrics-addr"),
		MaxConnections: v.GetInt("max-connections"),
		Connection: conn.Config{
			ProtocolTag:                tag,
			SendRate:                   v.GetInt("send-rate"),
			PacketMaxSize:              v.GetInt("packet-max-size"),
			PacketDropThreshold:        v.GetDuration("packet-drop-threshold"),
			ConnectionDropThreshold:    v.GetDuration("connection-drop-threshold"),
			ConnectionClosingThreshold: v.GetDuration("connection-closing-threshold"),
			CongestionRTTThreshold:     v.GetDuration("congestion-rtt-threshold"),
			CongestionDivider:          v.GetInt("congestion-divider"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(err, "config: invalid configuration")
	}
	return cfg, nil
}
