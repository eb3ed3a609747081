// Package config loads the Atelier coordinator configuration from the state
// directory. Both YAML and TOML are accepted, selected by file extension.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"atelier/pkg/protocol"
)

// Config holds coordinator settings.
type Config struct {
	// BackendURL is the platform API base URL.
	BackendURL string `yaml:"backend_url" toml:"backend_url"`

	// ChannelURL is the websocket endpoint for result delivery. Empty means
	// use the polling fallback only.
	ChannelURL string `yaml:"channel_url" toml:"channel_url"`

	// ClientKey is the stable client identity for the API and the channel.
	ClientKey string `yaml:"client_key" toml:"client_key"`

	// SiteID and Context select the default scope for the chat client.
	SiteID  string `yaml:"site_id" toml:"site_id"`
	Context string `yaml:"context" toml:"context"`

	// PageID is the page sent as task context, when known.
	PageID string `yaml:"page_id" toml:"page_id"`

	// HistoryLimit caps how many request/response pairs a history load
	// fetches.
	HistoryLimit int `yaml:"history_limit" toml:"history_limit"`

	// ReconnectDelaySeconds is the channel redial delay after an abnormal
	// close.
	ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds" toml:"reconnect_delay_seconds"`

	// PollIntervalSeconds is the polling fallback interval.
	PollIntervalSeconds int `yaml:"poll_interval_seconds" toml:"poll_interval_seconds"`

	// Debug enables file logging.
	Debug bool `yaml:"debug" toml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BackendURL:            "https://api.atelier.build",
		Context:               protocol.ContextStudio,
		HistoryLimit:          50,
		ReconnectDelaySeconds: 2,
		PollIntervalSeconds:   5,
	}
}

// Scope returns the configured default scope.
func (c Config) Scope() protocol.Scope {
	return protocol.Scope{SiteID: c.SiteID, Context: c.Context}
}

// ReconnectDelay returns the redial delay as a duration.
func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelaySeconds) * time.Second
}

// PollInterval returns the polling interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// Load reads a config file, merging it over Default. The format follows the
// extension: .yaml/.yml or .toml.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse toml config %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q", filepath.Ext(path))
	}
	return cfg, nil
}

// Locate returns the config file path under dir, preferring YAML over TOML.
// ok is false when neither exists.
func Locate(dir string) (path string, ok bool) {
	for _, name := range []string{protocol.ConfigYAMLName, protocol.ConfigTOMLName} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

// LoadDir loads the config from dir, falling back to Default when no config
// file exists.
func LoadDir(dir string) (Config, error) {
	path, ok := Locate(dir)
	if !ok {
		return Default(), nil
	}
	return Load(path)
}
