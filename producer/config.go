package producer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/jsonc"
)

// Config is the producer configuration, loaded from a JSONC file so
// operators can keep comments next to tuning values.
type Config struct {
	// Collector is the host:port frames are shipped to.
	Collector string `json:"collector"`

	// ImagesDir receives the numbered frame files.
	ImagesDir string `json:"images_dir"`

	// RecordCSV is where the timing report is written at shutdown.
	RecordCSV string `json:"record_csv"`

	Camera    CameraConfig    `json:"camera"`
	Sequencer SequencerConfig `json:"sequencer"`
	Sched     SchedConfig     `json:"sched"`
	Log       LogConfig       `json:"log"`

	// DialTimeoutMs bounds the collector connect attempt per shipped frame.
	DialTimeoutMs int `json:"dial_timeout_ms"`
}

// CameraConfig selects the frame source.
type CameraConfig struct {
	Index     int  `json:"index"`
	Synthetic bool `json:"synthetic"` // generate frames instead of opening a device
	Width     int  `json:"width"`
	Height    int  `json:"height"`
}

// SequencerConfig drives the release loop.
type SequencerConfig struct {
	PeriodMs       int  `json:"period_ms"`
	Fast           bool `json:"fast"` // 100ms master period, overrides period_ms
	Cycles         int  `json:"cycles"`
	CaptureDivisor int  `json:"capture_divisor"`
	ShipDivisor    int  `json:"ship_divisor"`
}

// Period returns the effective master period.
func (c SequencerConfig) Period() time.Duration {
	if c.Fast {
		return 100 * time.Millisecond
	}
	return time.Duration(c.PeriodMs) * time.Millisecond
}

// SchedConfig controls real-time promotion.
type SchedConfig struct {
	// RequireRealtime makes a failed SCHED_FIFO promotion fatal instead
	// of a warning. Needs CAP_SYS_NICE.
	RequireRealtime bool `json:"require_realtime"`
	// CPU pins all service threads to one core when >= 0. Advisory.
	CPU int `json:"cpu"`
}

// LogConfig configures the go-logging backends.
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Collector: "127.0.0.1:9000",
		ImagesDir: "images",
		RecordCSV: "record.csv",
		Camera:    CameraConfig{Index: 0, Synthetic: false, Width: 640, Height: 480},
		Sequencer: SequencerConfig{
			PeriodMs:       1000,
			Cycles:         10,
			CaptureDivisor: 1,
			ShipDivisor:    1,
		},
		Sched:         SchedConfig{CPU: -1},
		Log:           LogConfig{Level: "INFO"},
		DialTimeoutMs: 2000,
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
		if err := saveConfig(path, cfg); err != nil {
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

func saveConfig(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field ranges the pipeline depends on.
func (c *Config) Validate() error {
	if c.Collector == "" {
		return fmt.Errorf("collector must be set")
	}
	if c.ImagesDir == "" {
		return fmt.Errorf("images_dir must be set")
	}
	if c.Sequencer.Cycles <= 0 {
		return fmt.Errorf("sequencer.cycles must be positive, got %d", c.Sequencer.Cycles)
	}
	if !c.Sequencer.Fast && c.Sequencer.PeriodMs <= 0 {
		return fmt.Errorf("sequencer.period_ms must be positive, got %d", c.Sequencer.PeriodMs)
	}
	if c.Sequencer.CaptureDivisor < 1 {
		return fmt.Errorf("sequencer.capture_divisor must be >= 1, got %d", c.Sequencer.CaptureDivisor)
	}
	if c.Sequencer.ShipDivisor < 1 {
		return fmt.Errorf("sequencer.ship_divisor must be >= 1, got %d", c.Sequencer.ShipDivisor)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera resolution %dx%d invalid", c.Camera.Width, c.Camera.Height)
	}
	return nil
}

// DialTimeout returns the per-frame connect timeout.
func (c *Config) DialTimeout() time.Duration {
	if c.DialTimeoutMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.DialTimeoutMs) * time.Millisecond
}
