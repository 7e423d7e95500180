package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Assets    AssetsConfig    `toml:"assets"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Name        string `toml:"name"`
	BindAddress string `toml:"bind_address"`
}

type SchedulerConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
}

type AssetsConfig struct {
	// SceneFile is an optional YAML file of entities to preload at
	// boot. Empty means no preload.
	SceneFile string `toml:"scene_file"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve loads the config at path. A missing file falls back to the
// built-in defaults only when the path was not explicitly chosen; an
// operator who names a config file gets an error, not a silent boot
// with defaults.
func Resolve(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return Defaults(), nil
	}
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "geserver",
			BindAddress: "0.0.0.0:5003",
		},
		Scheduler: SchedulerConfig{
			TickRate: time.Second / 60, // 60 Hz
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
