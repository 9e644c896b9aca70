// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Backend names a repository implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendBadger Backend = "badger"
	BackendFlat   Backend = "flat"
)

type Config struct {
	Tracked struct {
		Path string `json:"path"`
	} `json:"tracked"`

	Store struct {
		Backend Backend `json:"backend"`
		Path    string  `json:"path"`
	} `json:"store"`

	LogLevel string `json:"log_level"` // debug, info, warn, error
}

// Default derives a config for a tracked file with no config file present:
// sqlite backend, store file next to the tracked file.
func Default(trackedPath string) *Config {
	var cfg Config
	cfg.Tracked.Path = trackedPath
	cfg.Store.Backend = BackendSQLite
	cfg.Store.Path = trackedPath + ".db"
	cfg.LogLevel = "info"
	return &cfg
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Tracked.Path == "" {
		return fmt.Errorf("config: tracked.path is required")
	}
	switch c.Store.Backend {
	case BackendSQLite, BackendBadger, BackendFlat:
	case "":
		c.Store.Backend = BackendSQLite
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Store.Path == "" {
		c.Store.Path = c.Tracked.Path + ".db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	return nil
}
