package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Executor ExecutorConfig `toml:"executor"`
	Logging  LoggingConfig  `toml:"logging"`
	Sim      SimConfig      `toml:"sim"`
}

type ExecutorConfig struct {
	Workers    int  `toml:"workers"`    // max concurrent systems per batch (0 = unbounded)
	Sequential bool `toml:"sequential"` // run without goroutines, for debugging
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type SimConfig struct {
	Ticks    int    `toml:"ticks"`
	Scenario string `toml:"scenario"` // YAML entity population
	Script   string `toml:"script"`   // Lua system file
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Sim: SimConfig{
			Ticks:    10,
			Scenario: "config/scenario.yaml",
			Script:   "scripts/poison.lua",
		},
	}
}
