package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment overrides, e.g. HEMO_STORE__PATH=/tmp/b.sqlite
// sets store.path.
const EnvPrefix = "HEMO_"

type Config struct {
	Store StoreConfig `json:"store"`
	Board BoardConfig `json:"board"`
	MQTT  MQTTConfig  `json:"mqtt"`
	Web   WebConfig   `json:"web"`
	Log   LogConfig   `json:"log"`

	// User is the signed-in user id. Empty means signed out (read-only).
	User string `json:"user"`
}

// Default returns a Config with defaults applied and no file loaded.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path (yaml or json) when it is non-empty, applies HEMO_*
// environment overrides and defaults, then validates. A missing file is an
// error only when the path was given explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if strings.TrimSpace(path) != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file not found: %s", path)
			}
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Board.SetDefaults()
	c.MQTT.SetDefaults()
	c.Web.SetDefaults()
	c.Log.SetDefaults()
	c.User = strings.TrimSpace(c.User)
}

func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Board.Validate(); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if err := c.MQTT.Validate(); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := c.Web.Validate(); err != nil {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}
