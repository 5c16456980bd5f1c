package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config carries everything the mod reads at startup. Values come from
// COOPMOD_* environment variables, then an optional YAML file overrides them.
type Config struct {
	Endpoint     string `env:"COOPMOD_ENDPOINT" envDefault:"127.0.0.1:27015" yaml:"endpoint"`
	SpawnProfile uint64 `env:"COOPMOD_SPAWN_PROFILE" yaml:"spawn_profile"`
	Version      string `env:"COOPMOD_VERSION" envDefault:"dev" yaml:"version"`

	ConnectTimeout time.Duration `env:"COOPMOD_CONNECT_TIMEOUT" envDefault:"10s" yaml:"connect_timeout"`

	// Updates for a peer with no actor yet wait at most this long / this many.
	UpdateBufferSize   int           `env:"COOPMOD_UPDATE_BUFFER_SIZE" envDefault:"16" yaml:"update_buffer_size"`
	UpdateBufferWindow time.Duration `env:"COOPMOD_UPDATE_BUFFER_WINDOW" envDefault:"500ms" yaml:"update_buffer_window"`

	// Protocol failures within the window before the session is dropped.
	ProtocolErrorLimit  int           `env:"COOPMOD_PROTOCOL_ERROR_LIMIT" envDefault:"5" yaml:"protocol_error_limit"`
	ProtocolErrorWindow time.Duration `env:"COOPMOD_PROTOCOL_ERROR_WINDOW" envDefault:"1s" yaml:"protocol_error_window"`

	GameThreadQueueSize int `env:"COOPMOD_GAME_THREAD_QUEUE" envDefault:"1024" yaml:"game_thread_queue"`
	SelfUpdateEvery     int `env:"COOPMOD_SELF_UPDATE_EVERY" envDefault:"1" yaml:"self_update_every"`

	// Host frame rates while awake and while allowed to sleep.
	TickRate     int `env:"COOPMOD_TICK_RATE" envDefault:"60" yaml:"tick_rate"`
	IdleTickRate int `env:"COOPMOD_IDLE_TICK_RATE" envDefault:"5" yaml:"idle_tick_rate"`

	OfflineBots    int    `env:"COOPMOD_OFFLINE_BOTS" envDefault:"3" yaml:"offline_bots"`
	OfflineCapture string `env:"COOPMOD_OFFLINE_CAPTURE" yaml:"offline_capture"`
	CapturePath    string `env:"COOPMOD_CAPTURE" yaml:"capture_path"`

	Debug bool `env:"COOPMOD_DEBUG" yaml:"debug"`
}

// Default returns the configuration from the environment alone.
func Default() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

// Load reads the environment, then overlays the YAML file at path if path
// is not empty.
func Load(path string) (Config, error) {
	c, err := Default()
	if err != nil {
		return c, err
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(raw, &c); err != nil {
			return c, fmt.Errorf("%s: %w", path, err)
		}
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("connect_timeout must be positive"))
	}
	if c.UpdateBufferSize <= 0 {
		errs = append(errs, errors.New("update_buffer_size must be positive"))
	}
	if c.UpdateBufferWindow <= 0 {
		errs = append(errs, errors.New("update_buffer_window must be positive"))
	}
	if c.ProtocolErrorLimit <= 0 {
		errs = append(errs, errors.New("protocol_error_limit must be positive"))
	}
	if c.ProtocolErrorWindow <= 0 {
		errs = append(errs, errors.New("protocol_error_window must be positive"))
	}
	if c.GameThreadQueueSize <= 0 {
		errs = append(errs, errors.New("game_thread_queue must be positive"))
	}
	if c.SelfUpdateEvery <= 0 {
		errs = append(errs, errors.New("self_update_every must be positive"))
	}
	if c.TickRate <= 0 || c.IdleTickRate <= 0 {
		errs = append(errs, errors.New("tick rates must be positive"))
	}
	if c.OfflineBots < 0 {
		errs = append(errs, errors.New("offline_bots must not be negative"))
	}
	return errors.Join(errs...)
}
