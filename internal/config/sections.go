package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type StoreConfig struct {
	// Backend selects the card store: "sqlite" or "memory".
	Backend string `json:"backend"`
	// Path is the SQLite database file.
	Path string `json:"path"`
	// PollIntervalMS controls how often the SQLite store checks for commits
	// made by other processes.
	PollIntervalMS int `json:"poll_interval_ms"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.Path == "" {
		c.Path = defaultDBPath()
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 1000
	}
}

func (c StoreConfig) Validate() error {
	if c.Backend != "sqlite" && c.Backend != "memory" {
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend == "sqlite" && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

func (c StoreConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func defaultDBPath() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "hemoboard", "board.sqlite")
	}
	return "hemoboard.sqlite"
}

type BoardConfig struct {
	// Increment is added to the cell maximum when appending a card.
	Increment int64 `json:"increment"`
	// ParkOffset is the minimum distance of the temporary park value from the
	// cell range during an adjacent swap.
	ParkOffset int64 `json:"park_offset"`
}

func (c *BoardConfig) SetDefaults() {
	if c.Increment == 0 {
		c.Increment = 10
	}
	if c.ParkOffset == 0 {
		c.ParkOffset = 100000
	}
}

func (c BoardConfig) Validate() error {
	if c.Increment <= 0 {
		return fmt.Errorf("increment must be positive")
	}
	if c.ParkOffset <= 0 {
		return fmt.Errorf("park_offset must be positive")
	}
	return nil
}

// MQTTConfig enables the cross-process change feed when Broker is set.
type MQTTConfig struct {
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

func (c *MQTTConfig) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "hemoboard"
	}
}

func (c MQTTConfig) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return nil
}

func (c MQTTConfig) Enabled() bool { return c.Broker != "" }

type WebConfig struct {
	Addr string `json:"addr"`
	// AuthMode is "none" (every request acts as the configured user) or
	// "token" (bearer tokens issued by POST /api/login).
	AuthMode        string `json:"auth_mode"`
	Secret          string `json:"secret"`
	TokenTTLMinutes int    `json:"token_ttl_minutes"`
	// OutboxDir receives login link messages in token mode.
	OutboxDir string `json:"outbox_dir"`
}

func (c *WebConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8080"
	}
	if c.AuthMode == "" {
		c.AuthMode = "none"
	}
	if c.TokenTTLMinutes <= 0 {
		c.TokenTTLMinutes = 12 * 60
	}
	if c.OutboxDir == "" {
		c.OutboxDir = "hemoboard-outbox"
	}
}

func (c WebConfig) Validate() error {
	if c.AuthMode != "none" && c.AuthMode != "token" {
		return fmt.Errorf("invalid auth_mode %s (expected none|token)", c.AuthMode)
	}
	if c.AuthMode == "token" && c.Secret == "" {
		return fmt.Errorf("secret is required when auth_mode is token")
	}
	return nil
}

func (c WebConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

type LogConfig struct {
	Level string `json:"level"`
}

func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}
