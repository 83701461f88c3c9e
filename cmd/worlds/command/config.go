package command

import (
	"fmt"
	"time"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/go-persistent-worlds/internal/persist"
)

type Config struct {
	TickInterval string `json:"tick_interval"`
	// TickTimeout bounds a single tick, autosaves included. Empty leaves
	// ticks unbounded.
	TickTimeout string `json:"tick_timeout"`
	// AutosaveEvery is counted in ticks; zero disables autosave.
	AutosaveEvery int `json:"autosave_every"`
	// WorldDir is the saved world to serve.
	WorldDir string `json:"world_dir"`
	// Colony is activated after loading; zero picks the most recently
	// written colony.
	Colony int `json:"colony"`
	// PersistConfig is a yaml file read with persist.LoadConfig. Empty
	// means the defaults.
	PersistConfig string        `json:"persist_config"`
	Nats          NatsConfig    `json:"nats"`
	Metrics       MetricsConfig `json:"metrics"`
}

func (c *Config) Validate() error {
	el := errors.NewErrorList()

	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		el.Add(fmt.Errorf("parsing tick_interval: %w", err))
	} else if d < 100*time.Millisecond {
		el.Add(fmt.Errorf("tick_interval must be at least 100ms"))
	}

	if c.TickTimeout != "" {
		t, err := time.ParseDuration(c.TickTimeout)
		if err != nil {
			el.Add(fmt.Errorf("parsing tick_timeout: %w", err))
		} else if t <= 0 {
			el.Add(fmt.Errorf("tick_timeout must be positive"))
		}
	}

	if c.AutosaveEvery < 0 {
		el.Add(fmt.Errorf("autosave_every must not be negative"))
	}
	if c.WorldDir == "" {
		el.Add(fmt.Errorf("world_dir is required"))
	}
	if c.Colony < 0 {
		el.Add(fmt.Errorf("colony must not be negative"))
	}

	el.Add(c.Nats.validate())

	return el.Err()
}

func (c *Config) tickLength() time.Duration {
	d, _ := time.ParseDuration(c.TickInterval)
	return d
}

func (c *Config) tickTimeout() time.Duration {
	if c.TickTimeout == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.TickTimeout)
	return d
}

func (c *Config) loadPersistConfig() (persist.Config, error) {
	cfg, err := persist.LoadConfig(c.PersistConfig)
	if err != nil {
		return cfg, fmt.Errorf("loading persist config: %w", err)
	}
	return cfg, nil
}
