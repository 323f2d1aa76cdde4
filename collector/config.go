package collector

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// DefaultBufSize is one oversized raster worth: the receiver's initial
// buffer size and its growth increment.
const DefaultBufSize = 925696

// Config is the collector configuration, loaded from a JSONC file.
type Config struct {
	// ListenAddr is the TCP bind address.
	ListenAddr string `json:"listen_addr"`

	// ImagesDir receives the committed frame files.
	ImagesDir string `json:"images_dir"`

	// BufSize is the reassembly buffer growth increment in bytes.
	BufSize int `json:"buf_size"`

	// DatabaseURL enables the Postgres frame catalog when set.
	DatabaseURL string `json:"database_url,omitempty"`

	Log LogConfig `json:"log"`
}

// LogConfig configures the go-logging backends.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: "0.0.0.0:9000",
		ImagesDir:  "images",
		BufSize:    DefaultBufSize,
		Log:        LogConfig{Level: "INFO"},
	}
}

// LoadConfig reads and validates the config file. A missing file yields
// the defaults, persisted back so the operator has something to edit.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		cfg := DefaultConfig()
		out, merr := json.MarshalIndent(cfg, "", "  ")
		if merr != nil {
			return nil, merr
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return nil, fmt.Errorf("save default config: %w", err)
		}
		return cfg, nil
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges the server depends on.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must be set")
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("images_dir must be set")
	}
	if c.BufSize <= 0 {
		return fmt.Errorf("buf_size must be positive, got %d", c.BufSize)
	}
	return nil
}
