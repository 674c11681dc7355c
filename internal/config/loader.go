// Package config loads and merges JSON configuration from global and
// project scopes on top of built-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: $XDG_CONFIG_HOME/agentcoord/config.json
// Project: .agentcoord/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	globalPath := filepath.Join(xdg.ConfigHome, "agentcoord", "config.json")
	projectPath := filepath.Join(".agentcoord", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into the base.
// Missing files are silently skipped. Zero-valued fields in the file keep
// the base's values; target entries merge by agent ID.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Engine.QueueSize > 0 {
		base.Engine.QueueSize = loaded.Engine.QueueSize
	}
	if loaded.Engine.WorkerTimeout > 0 {
		base.Engine.WorkerTimeout = loaded.Engine.WorkerTimeout
	}
	if loaded.Engine.SessionTTL > 0 {
		base.Engine.SessionTTL = loaded.Engine.SessionTTL
	}
	if loaded.Delivery.TargetTTL > 0 {
		base.Delivery.TargetTTL = loaded.Delivery.TargetTTL
	}
	if loaded.Logging.Level != "" {
		base.Logging.Level = loaded.Logging.Level
	}
	if loaded.Logging.Format != "" {
		base.Logging.Format = loaded.Logging.Format
	}
	if loaded.Snapshot != "" {
		base.Snapshot = loaded.Snapshot
	}
	if loaded.History != "" {
		base.History = loaded.History
	}
	for id, target := range loaded.Targets {
		base.Targets[id] = target
	}

	return nil
}
