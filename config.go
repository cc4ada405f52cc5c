package udpqueue

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// defaultMinSleep is the busy-skip threshold below which the dispatch loop
// does not bother sleeping and instead re-evaluates the schedule
// immediately. Tuned to typical OS sleep jitter; see Config.MinSleep to
// override.
const defaultMinSleep = 1500 * time.Microsecond

// Config holds the tunables for a Manager.
type Config struct {
	// QueueBufferCapacity is the number of packets each stream's ring
	// buffer can hold before Enqueue starts returning false. Typical
	// range: 500-4000.
	QueueBufferCapacity int

	// PacketInterval is the target spacing between successive sends for a
	// single stream. Typical value for real-time audio: 20ms.
	PacketInterval time.Duration

	// MinSleep is the minimum actionable sleep duration; shorter waits are
	// busy-skipped. Zero selects defaultMinSleep.
	MinSleep time.Duration

	// Logging configures the structured logger used for lifecycle and
	// error events.
	Logging LoggingConfig

	// Metrics configures whether and where Prometheus collectors are
	// registered.
	Metrics MetricsConfig
}

// LoggingConfig configures the logrus logger a Manager uses.
type LoggingConfig struct {
	// Level is a logrus level name ("debug", "info", "warn", "error").
	// Empty disables logging entirely.
	Level string `yaml:"level"`
}

// MetricsConfig configures Prometheus collector registration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// yamlConfig is the on-disk shape of Config. Durations are plain Go
// duration strings ("20ms", "1.5s") rather than nanosecond integers, since
// yaml.v3 has no built-in notion of time.Duration as a scalar.
type yamlConfig struct {
	QueueBufferCapacity int           `yaml:"queue_buffer_capacity"`
	PacketInterval      string        `yaml:"packet_interval"`
	MinSleep            string        `yaml:"min_sleep"`
	Logging             LoggingConfig `yaml:"logging"`
	Metrics             MetricsConfig `yaml:"metrics"`
}

// UnmarshalYAML decodes the string-duration wire format into Config's
// time.Duration fields.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var raw yamlConfig
	if err := value.Decode(&raw); err != nil {
		return err
	}

	c.QueueBufferCapacity = raw.QueueBufferCapacity
	c.Logging = raw.Logging
	c.Metrics = raw.Metrics

	if raw.PacketInterval != "" {
		d, err := time.ParseDuration(raw.PacketInterval)
		if err != nil {
			return errors.Wrapf(err, "invalid packet_interval %q", raw.PacketInterval)
		}
		c.PacketInterval = d
	}
	if raw.MinSleep != "" {
		d, err := time.ParseDuration(raw.MinSleep)
		if err != nil {
			return errors.Wrapf(err, "invalid min_sleep %q", raw.MinSleep)
		}
		c.MinSleep = d
	}
	return nil
}

// Load reads and parses a YAML config file, applying defaults and
// validating the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "udpqueue: read config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "udpqueue: parse config")
	}

	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.MinSleep <= 0 {
		c.MinSleep = defaultMinSleep
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "udpqueue"
	}
}

func (c *Config) validate() error {
	if c.QueueBufferCapacity <= 0 {
		return errors.Wrap(ErrInvalidConfig, "queue_buffer_capacity must be positive")
	}
	if c.PacketInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "packet_interval must be positive")
	}
	return nil
}
