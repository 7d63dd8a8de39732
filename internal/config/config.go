package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type AppConfig struct {
	Port           int           `toml:"port"`
	Endpoint       string        `toml:"endpoint"`
	Workers        int           `toml:"workers"`
	Debug          bool          `toml:"debug"`
	DebugFPS       float64       `toml:"debug_fps"`
	DebugWidth     int           `toml:"debug_width"`
	DebugHeight    int           `toml:"debug_height"`
	DefaultFilter  string        `toml:"default_filter"`
	JPEGQuality    int           `toml:"jpeg_quality"`
	MaxFrameBytes  int64         `toml:"max_frame_bytes"`
	IngestLogEvery int           `toml:"ingest_log_every"`
	IngestFallback bool          `toml:"ingest_fallback"`
	// StatsInterval is written as a duration string in TOML, e.g. "30s".
	StatsInterval  time.Duration `toml:"-"`
}

// fileDurations holds the keys whose TOML form differs from AppConfig.
type fileDurations struct {
	StatsInterval string `toml:"stats_interval"`
}

func Default() AppConfig {
	return AppConfig{
		Port:           8888,
		Endpoint:       "tcp://localhost:31001",
		Workers:        4,
		DebugFPS:       15,
		DebugWidth:     640,
		DebugHeight:    480,
		DefaultFilter:  "Original",
		JPEGQuality:    80,
		MaxFrameBytes:  8 << 20,
		IngestLogEvery: 100,
		IngestFallback: true,
		StatsInterval:  30 * time.Second,
	}
}

// Load reads a TOML file over the defaults. Keys absent from the file keep
// their default value.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	var durations fileDurations
	if err := toml.Unmarshal(data, &durations); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if durations.StatsInterval != "" {
		interval, err := time.ParseDuration(durations.StatsInterval)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: stats_interval: %w", path, err)
		}
		cfg.StatsInterval = interval
	}
	return cfg, nil
}

// Validate normalises out of range values and reports settings that cannot
// work. known reports whether a filter name is registered.
func (c *AppConfig) Validate(known func(string) bool) error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	if c.DebugFPS <= 0 {
		c.DebugFPS = 15
	}
	if c.DebugWidth < 1 || c.DebugHeight < 1 {
		return fmt.Errorf("invalid debug frame size %dx%d", c.DebugWidth, c.DebugHeight)
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 8 << 20
	}
	if c.IngestLogEvery < 1 {
		c.IngestLogEvery = 1
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = 30 * time.Second
	}
	if known != nil && !known(c.DefaultFilter) {
		return fmt.Errorf("unknown default filter %q", c.DefaultFilter)
	}
	return nil
}
