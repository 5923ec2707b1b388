package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches for a config file in the current directory.
// It looks for canvasd.hjson first, then canvasd.json.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"canvasd.hjson",
		"canvasd.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return abs, nil
		}
	}

	return "", fmt.Errorf("config file not found (looked for canvasd.hjson, canvasd.json)")
}

// Default returns a Config populated entirely from defaults, for when no
// config file is present (e.g. tests, `-port` only invocations).
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "database/canvas.db"
	}

	if cfg.Media.UploadsDir == "" {
		cfg.Media.UploadsDir = "uploads"
	}
	if cfg.Media.ThumbnailsDir == "" {
		cfg.Media.ThumbnailsDir = "thumbnails"
	}
	if cfg.Media.TranscodesDir == "" {
		cfg.Media.TranscodesDir = "transcodes"
	}
	if cfg.Media.MaxUploadBytes == 0 {
		cfg.Media.MaxUploadBytes = 500 * 1024 * 1024
	}
	if len(cfg.Media.ThumbnailSizes) == 0 {
		cfg.Media.ThumbnailSizes = []int{64, 128, 256, 512, 1024, 2048}
	}
	if cfg.Media.ThumbnailBatch == 0 {
		cfg.Media.ThumbnailBatch = 2
	}
	if cfg.Media.WebPQuality == 0 {
		cfg.Media.WebPQuality = 85
	}
	if len(cfg.Media.VideoFormats) == 0 {
		cfg.Media.VideoFormats = []string{"webm"}
	}
	if cfg.Media.VideoMaxWidth == 0 {
		cfg.Media.VideoMaxWidth = 1920
	}
	if cfg.Media.VideoMaxHeight == 0 {
		cfg.Media.VideoMaxHeight = 1080
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.FFprobePath == "" {
		cfg.Media.FFprobePath = "ffprobe"
	}
	if cfg.Media.CwebpPath == "" {
		cfg.Media.CwebpPath = "cwebp"
	}
	if cfg.Media.MaxOpPayloadKiB == 0 {
		cfg.Media.MaxOpPayloadKiB = 100
	}

	if cfg.Cleanup.Interval == "" {
		cfg.Cleanup.Interval = "6h"
	}
	if cfg.Cleanup.InitialDelay == "" {
		cfg.Cleanup.InitialDelay = "30m"
	}
	if cfg.Cleanup.RecentVideoWindow == "" {
		cfg.Cleanup.RecentVideoWindow = "1h"
	}
	if cfg.Cleanup.OperationsWindow == "" {
		cfg.Cleanup.OperationsWindow = "30m"
	}
	if cfg.Cleanup.DangerThreshold == 0 {
		cfg.Cleanup.DangerThreshold = 0.5
	}

	if len(cfg.CORS.Origins) == 0 {
		cfg.CORS.Origins = []string{"*"}
	}

	if cfg.Events.History.MaxEvents == 0 {
		cfg.Events.History.MaxEvents = 10000
	}
	if cfg.Events.History.MaxAge == "" {
		cfg.Events.History.MaxAge = "1h"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
