package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Default and by Load when a field is absent.
const (
	DefaultPort           = 443
	DefaultMaxMessageSize = 65536
	DefaultPollInterval   = 50 * time.Millisecond
)

// Config is the on-disk endpoint configuration shared by the SLINK
// command-line tools.
type Config struct {
	// Host is the peer host (client) or bind host (server).
	Host string `yaml:"host"`

	// Port is the peer/listen port.
	Port int `yaml:"port"`

	// MaxMessageSize is the maximum accepted message size in bytes.
	MaxMessageSize uint32 `yaml:"max_message_size"`

	// PollInterval bounds how long a polled receive blocks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CertFile and KeyFile point at the PEM identity. When both are
	// empty the tools fall back to the embedded development
	// credential.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// PinnedPeerFingerprint, when set, replaces chain verification
	// with an exact SHA-256 match of the peer's leaf certificate.
	PinnedPeerFingerprint string `yaml:"pinned_peer_fingerprint"`

	// InsecureSkipVerify disables peer verification. Testing only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// LogFile is the protocol log destination (.plog). Empty disables
	// protocol logging.
	LogFile string `yaml:"log_file"`

	// KeepAlive configures the client liveness monitor.
	KeepAlive KeepAlive `yaml:"keepalive"`
}

// KeepAlive is the keep-alive section of the configuration.
type KeepAlive struct {
	Enabled        bool          `yaml:"enabled"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
	MaxMissedPongs int           `yaml:"max_missed_pongs"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Port:           DefaultPort,
		MaxMessageSize: DefaultMaxMessageSize,
		PollInterval:   DefaultPollInterval,
	}
}

// Load reads and validates a YAML configuration file. Missing fields
// keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxMessageSize == 0 {
		return fmt.Errorf("max_message_size must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file must be set together")
	}
	if c.KeepAlive.Enabled {
		if c.KeepAlive.PingInterval < 0 || c.KeepAlive.PongTimeout < 0 {
			return fmt.Errorf("keepalive intervals must not be negative")
		}
		if c.KeepAlive.MaxMissedPongs < 0 {
			return fmt.Errorf("keepalive max_missed_pongs must not be negative")
		}
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
