package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so configs can say "200ms" or "30m"
// instead of raw nanosecond counts.
type Duration time.Duration

// MarshalJSON renders the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts either a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or number: %s", data)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// EngineConfig tunes the coordination engine and its background worker.
type EngineConfig struct {
	QueueSize     int      `json:"queue_size,omitempty"`     // Message queue capacity
	WorkerTimeout Duration `json:"worker_timeout,omitempty"` // Idle wake interval for the worker loop
	SessionTTL    Duration `json:"session_ttl,omitempty"`    // Lifetime of a coordination session
}

// DeliveryConfig tunes the delivery gateway.
type DeliveryConfig struct {
	TargetTTL Duration `json:"target_ttl,omitempty"` // Target cache entry lifetime
}

// TargetConfig declares where an agent receives messages.
type TargetConfig struct {
	Kind     string `json:"kind"`               // Transport kind: "log" or "websocket"
	Endpoint string `json:"endpoint,omitempty"` // ws:// URL for websocket targets
	Channel  string `json:"channel,omitempty"`  // Logical channel name
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // "debug", "info", "warn", "error"
	Format string `json:"format,omitempty"` // "text" or "json"
}

// Config is the top-level configuration.
type Config struct {
	Engine   EngineConfig            `json:"engine"`
	Delivery DeliveryConfig          `json:"delivery"`
	Logging  LoggingConfig           `json:"logging"`
	Snapshot string                  `json:"snapshot,omitempty"` // Task state snapshot path
	History  string                  `json:"history,omitempty"`  // SQLite archive path ("" disables archiving)
	Targets  map[string]TargetConfig `json:"targets"`            // Agent ID -> delivery target
}
