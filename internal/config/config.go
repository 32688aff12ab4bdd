// Package config loads the YAML configuration for a relicdb instance.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the on-disk tuning knobs for the storage layer.
type Config struct {
	Storage struct {
		DataDir  string `mapstructure:"data_dir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.DataDir = "."
	cfg.Storage.PageSize = 4096
	return cfg
}

// Load reads a YAML config file at path and applies it over Default.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("storage.data_dir", ".")
	v.SetDefault("storage.page_size", 4096)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
