package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the optional --config file. Command line flags override it.
type Config struct {
	Process string     `yaml:"process"`
	Color   *bool      `yaml:"color,omitempty"`
	Demo    DemoConfig `yaml:"demo"`
}

// DemoConfig drives the demo command
type DemoConfig struct {
	Address      string `yaml:"address"`
	Text         string `yaml:"text"`
	BeforeLength uint   `yaml:"before-length"`
	AfterLength  uint   `yaml:"after-length"`
}

// DefaultConfig patches the Lightshot capture banner
func DefaultConfig() Config {
	return Config{
		Process: "Lightshot",
		Demo: DemoConfig{
			Address:      "0x00DC7FF5",
			Text:         "This is a test",
			BeforeLength: 8,
			AfterLength:  16,
		},
	}
}

// LoadConfig reads path over the defaults; keys missing from the file keep
// their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
