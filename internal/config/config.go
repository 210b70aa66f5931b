// Package config loads the relay's channel policy file: which destination
// channels exist, whether they can prompt a human, how much reasoning they
// see, and what happens to permission requests they cannot answer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reasoning visibility levels a channel may request.
const (
	ReasoningOff      = "off"
	ReasoningSummary  = "summary"
	ReasoningRawDebug = "raw_debug"
)

// Auto-reply policies for permission requests on non-interactive channels.
const (
	PermissionAllow  = "allow"
	PermissionReject = "reject"
)

// Channel is the policy for one destination channel.
type Channel struct {
	Name        string `yaml:"name"`
	Interactive bool   `yaml:"interactive"`
	Reasoning   string `yaml:"reasoning"`
	Permissions string `yaml:"permissions"`
	Peer        string `yaml:"peer"`
}

// Config is the full relay configuration.
type Config struct {
	ServerURL      string    `yaml:"server_url"`
	DefaultChannel string    `yaml:"default_channel"`
	MaxPending     int       `yaml:"max_pending"`
	Channels       []Channel `yaml:"channels"`
}

// Default returns the configuration used when no file is given: a single
// interactive "ui" channel with reasoning summaries.
func Default() *Config {
	return &Config{
		ServerURL:      "http://localhost:4096",
		DefaultChannel: "ui",
		Channels: []Channel{
			{Name: "ui", Interactive: true, Reasoning: ReasoningSummary},
		},
	}
}

// Load reads and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates raw YAML config bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Channels) == 0 {
		cfg.Channels = Default().Channels
	}

	seen := make(map[string]bool, len(cfg.Channels))
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Name == "" {
			return nil, fmt.Errorf("channel %d: name is required", i)
		}
		if seen[ch.Name] {
			return nil, fmt.Errorf("channel %q: duplicate name", ch.Name)
		}
		seen[ch.Name] = true

		if ch.Reasoning == "" {
			ch.Reasoning = ReasoningOff
		}
		switch ch.Reasoning {
		case ReasoningOff, ReasoningSummary, ReasoningRawDebug:
		default:
			return nil, fmt.Errorf("channel %q: unknown reasoning mode %q", ch.Name, ch.Reasoning)
		}

		if ch.Permissions == "" {
			ch.Permissions = PermissionReject
		}
		switch ch.Permissions {
		case PermissionAllow, PermissionReject:
		default:
			return nil, fmt.Errorf("channel %q: unknown permission policy %q", ch.Name, ch.Permissions)
		}
	}

	if cfg.DefaultChannel == "" {
		cfg.DefaultChannel = cfg.Channels[0].Name
	}
	if !seen[cfg.DefaultChannel] {
		return nil, fmt.Errorf("default_channel %q is not a defined channel", cfg.DefaultChannel)
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = Default().ServerURL
	}

	return cfg, nil
}

// ChannelByName returns the named channel policy, or nil.
func (c *Config) ChannelByName(name string) *Channel {
	for i := range c.Channels {
		if c.Channels[i].Name == name {
			return &c.Channels[i]
		}
	}
	return nil
}
