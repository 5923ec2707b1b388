// Package config handles HJSON configuration loading for canvasd.
package config

import "time"

// Config is the root configuration structure for canvasd.
type Config struct {
	Version  string         `json:"version"`
	Project  ProjectConfig  `json:"project"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Media    MediaConfig    `json:"media"`
	Cleanup  CleanupConfig  `json:"cleanup"`
	CORS     CORSConfig     `json:"cors"`
	Events   EventsConfig   `json:"events"`
	Logging  LoggingConfig  `json:"logging"`
}

// ProjectConfig contains project metadata.
type ProjectConfig struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ServerConfig configures the HTTP/WebSocket server.
type ServerConfig struct {
	Port    int    `json:"port"`
	Host    string `json:"host"`
	TLSCert string `json:"tls_cert"` // Path to TLS certificate file (enables HTTPS if both cert and key set)
	TLSKey  string `json:"tls_key"`  // Path to TLS private key file
}

// DatabaseConfig configures the persistence facade.
type DatabaseConfig struct {
	Path string `json:"path"` // SQLite file path (default: database/canvas.db)
}

// MediaConfig configures the upload/thumbnail/transcode pipeline.
type MediaConfig struct {
	UploadsDir      string   `json:"uploads_dir"`       // default: uploads
	ThumbnailsDir   string   `json:"thumbnails_dir"`    // default: thumbnails
	TranscodesDir   string   `json:"transcodes_dir"`    // default: transcodes
	MaxUploadBytes  int64    `json:"max_upload_bytes"`  // default: 500 MiB
	ThumbnailSizes  []int    `json:"thumbnail_sizes"`   // default: 64,128,256,512,1024,2048
	ThumbnailBatch  int      `json:"thumbnail_batch"`   // default: 2
	WebPQuality     int      `json:"webp_quality"`      // default: 85
	VideoFormats    []string `json:"video_formats"`     // default: ["webm"]
	VideoMaxWidth   int      `json:"video_max_width"`   // default: 1920
	VideoMaxHeight  int      `json:"video_max_height"`  // default: 1080
	FFmpegPath      string   `json:"ffmpeg_path"`       // default: ffmpeg
	FFprobePath     string   `json:"ffprobe_path"`      // default: ffprobe
	CwebpPath       string   `json:"cwebp_path"`        // default: cwebp
	MaxOpPayloadKiB int      `json:"max_op_payload_kib"` // default: 100
}

// CleanupConfig configures the periodic upload-sweep.
type CleanupConfig struct {
	Interval          string  `json:"interval"`            // default: 6h
	InitialDelay      string  `json:"initial_delay"`       // default: 30m
	RecentVideoWindow string  `json:"recent_video_window"` // default: 1h
	OperationsWindow  string  `json:"operations_window"`   // default: 30m
	DangerThreshold   float64 `json:"danger_threshold"`    // default: 0.5 (50%)
}

// CORSConfig configures cross-origin access.
type CORSConfig struct {
	Origins []string `json:"origins"` // comma-separated allowlist; "*" allows all
}

// EventsConfig configures the internal event bus.
type EventsConfig struct {
	History HistoryConfig `json:"history"`
}

// HistoryConfig configures event history retention.
type HistoryConfig struct {
	MaxEvents int    `json:"max_events"`
	MaxAge    string `json:"max_age"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `json:"level"` // "debug", "info", "warn", "error"
}

// ParseDuration parses a duration string, returning a default if empty or invalid.
func ParseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
