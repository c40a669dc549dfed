package main

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rotisserie/eris"
)

type Config struct {
	Run     RunConfig     `toml:"run"`
	Logging LoggingConfig `toml:"logging"`
	Metrics MetricsConfig `toml:"metrics"`
}

type RunConfig struct {
	Duration       time.Duration `toml:"duration"`
	Entities       int           `toml:"entities"`
	Mode           string        `toml:"mode"`            // "world" or "archetype"
	MaxLifetime    float64       `toml:"max_lifetime"`    // seconds an entity lives at most
	RecycleIndices bool          `toml:"recycle_indices"` // world mode only
	Profile        string        `toml:"profile"`         // "", "cpu", "mem" or "alloc"
	ProfilePath    string        `toml:"profile_path"`
	GCPauseMetrics bool          `toml:"gc_pause_metrics"`
	Seed           int64         `toml:"seed"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	StatsdAddr string `toml:"statsd_addr"`
}

func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Duration:    10 * time.Second,
			Entities:    10000,
			Mode:        modeWorld,
			MaxLifetime: 2.0,
			ProfilePath: ".",
			Seed:        1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a TOML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read config")
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, eris.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Run.Mode {
	case modeWorld, modeArchetype:
	default:
		return eris.Errorf("unknown mode %q", c.Run.Mode)
	}
	switch c.Run.Profile {
	case "", "cpu", "mem", "alloc":
	default:
		return eris.Errorf("unknown profile %q", c.Run.Profile)
	}
	if c.Run.Entities < 0 {
		return eris.New("entities must not be negative")
	}
	if c.Run.Duration <= 0 {
		return eris.New("duration must be positive")
	}
	if c.Run.MaxLifetime <= 0 {
		return eris.New("max_lifetime must be positive")
	}
	return nil
}
