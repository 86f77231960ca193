package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thingset-go/thingset-go/pkg/node"
)

// Config holds the settings shared by the sample thingset-* commands.
// Not every field applies to every command; a CAN node ignores the IP
// fields and vice versa.
type Config struct {
	// IPListenAddr is the TCP request/response listen address, e.g. ":9001".
	IPListenAddr string `mapstructure:"ip_listen_addr" yaml:"ip_listen_addr"`

	// IPInterface is the local interface address the UDP publisher binds
	// its source socket to, e.g. "0.0.0.0".
	IPInterface string `mapstructure:"ip_interface" yaml:"ip_interface"`

	// IPBroadcastAddr is the UDP broadcast host reports are published to,
	// e.g. "255.255.255.255" (no port: the publisher always uses the
	// transport's fixed report port).
	IPBroadcastAddr string `mapstructure:"ip_broadcast_addr" yaml:"ip_broadcast_addr"`

	// IPReportChunkSize bounds a single UDP datagram's payload before the
	// publisher falls back to multi-frame fragmentation.
	IPReportChunkSize int `mapstructure:"ip_report_chunk_size" yaml:"ip_report_chunk_size"`

	// CANInterface is the SocketCAN interface name, e.g. "can0".
	CANInterface string `mapstructure:"can_interface" yaml:"can_interface"`

	// Roles is the role set incoming requests are evaluated under.
	Roles node.RoleSet `mapstructure:"-" yaml:"-"`
	// RoleNames is Roles before parsing, as given in config: any
	// combination of "user", "expert", "manufacturer".
	RoleNames []string `mapstructure:"roles" yaml:"roles"`

	// PersistPath is the file FileStore saves/loads the persisted subset to.
	PersistPath string `mapstructure:"persist_path" yaml:"persist_path"`

	// MinReportInterval and MaxReportInterval configure the subset
	// publisher's coalescing window and heartbeat period, as Go duration
	// strings (e.g. "100ms", "60s").
	MinReportInterval string `mapstructure:"min_report_interval" yaml:"min_report_interval"`
	MaxReportInterval string `mapstructure:"max_report_interval" yaml:"max_report_interval"`

	// LogLevel is the zerolog level name ("debug", "info", "warn", "error").
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// ProtocolLogFile, if set, receives CBOR-encoded protocol events.
	ProtocolLogFile string `mapstructure:"protocol_log_file" yaml:"protocol_log_file,omitempty"`
}

// Defaults returns a Config populated with this project's defaults.
func Defaults() Config {
	return Config{
		IPListenAddr:      ":9001",
		IPInterface:       "0.0.0.0",
		IPBroadcastAddr:   "255.255.255.255",
		IPReportChunkSize: 512,
		CANInterface:      "can0",
		RoleNames:         []string{"user", "expert", "manufacturer"},
		PersistPath:       "thingset-state.bin",
		MinReportInterval: "100ms",
		MaxReportInterval: "60s",
		LogLevel:          "info",
	}
}

// Load builds a viper instance layering, from lowest to highest
// precedence: built-in defaults, an optional YAML file at path (ignored
// if path is empty or the file doesn't exist), environment variables
// prefixed THINGSET_, and flags already bound into fs. The result is
// unmarshalled into a Config and its RoleNames are parsed into Roles.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()

	defaults := Defaults()
	v.SetDefault("ip_listen_addr", defaults.IPListenAddr)
	v.SetDefault("ip_interface", defaults.IPInterface)
	v.SetDefault("ip_broadcast_addr", defaults.IPBroadcastAddr)
	v.SetDefault("ip_report_chunk_size", defaults.IPReportChunkSize)
	v.SetDefault("can_interface", defaults.CANInterface)
	v.SetDefault("roles", defaults.RoleNames)
	v.SetDefault("persist_path", defaults.PersistPath)
	v.SetDefault("min_report_interval", defaults.MinReportInterval)
	v.SetDefault("max_report_interval", defaults.MaxReportInterval)
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix("thingset")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	roles, err := ParseRoles(cfg.RoleNames)
	if err != nil {
		return Config{}, err
	}
	cfg.Roles = roles
	return cfg, nil
}

// ParseRoles translates role names ("user", "expert", "manufacturer")
// into a node.RoleSet. An empty list parses to node.RoleSetAll, matching
// the server's own default.
func ParseRoles(names []string) (node.RoleSet, error) {
	if len(names) == 0 {
		return node.RoleSetAll, nil
	}
	var set node.RoleSet
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "user":
			set |= node.RoleSetUser
		case "expert":
			set |= node.RoleSetExpert
		case "manufacturer":
			set |= node.RoleSetManufacturer
		default:
			return 0, fmt.Errorf("config: unknown role %q", n)
		}
	}
	return set, nil
}

// Marshal renders cfg as YAML, suitable for writing out a starting
// point a deployment then edits by hand.
func Marshal(cfg Config) ([]byte, error) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: marshal: %w", err)
	}
	return out, nil
}

// WriteSample writes Defaults() to path as YAML, failing if the file
// already exists so it never clobbers a deployment's edited config.
func WriteSample(path string) error {
	out, err := Marshal(Defaults())
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("config: write sample: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(out); err != nil {
		return fmt.Errorf("config: write sample: %w", err)
	}
	return nil
}
