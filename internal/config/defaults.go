package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// DefaultConfig returns the built-in defaults. Every field a config file
// omits keeps these values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			QueueSize:     256,
			WorkerTimeout: Duration(200 * time.Millisecond),
			SessionTTL:    Duration(30 * time.Minute),
		},
		Delivery: DeliveryConfig{
			TargetTTL: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Snapshot: filepath.Join(xdg.DataHome, "agentcoord", "tasks.json"),
		History:  filepath.Join(xdg.DataHome, "agentcoord", "history.db"),
		Targets:  map[string]TargetConfig{},
	}
}
