package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		version: "1"
		project: {
			name: "test-canvas"
			description: "A test canvas project"
		}
		server: {
			port: 8080
			host: "127.0.0.1"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "test-canvas", cfg.Project.Name)
	assert.Equal(t, "A test canvas project", cfg.Project.Description)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	configContent := `{
		// This is a comment
		version: "1"

		# Hash comment
		project: {
			name: test-canvas
			description: '''
				Multi-line
				description
			'''
		}

		server: {
			port: 8080,
			host: 127.0.0.1,
		}

		media: {
			thumbnail_sizes: [64, 128, 256]
			webp_quality: 90
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, "test-canvas", cfg.Project.Name)
	assert.Contains(t, cfg.Project.Description, "Multi-line")
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []int{64, 128, 256}, cfg.Media.ThumbnailSizes)
	assert.Equal(t, 90, cfg.Media.WebPQuality)
}

func TestLoader_Load_AllSections(t *testing.T) {
	configContent := `{
		version: "1"

		project: {
			name: "full-project"
		}

		server: {
			port: 1000
			host: "0.0.0.0"
		}

		database: {
			path: "data/canvas.db"
		}

		media: {
			uploads_dir: "data/uploads"
			thumbnails_dir: "data/thumbnails"
			transcodes_dir: "data/transcodes"
			max_upload_bytes: 104857600
			thumbnail_sizes: [64, 256, 1024]
			webp_quality: 80
			video_formats: ["webm"]
			video_max_width: 1280
			video_max_height: 720
		}

		cleanup: {
			interval: "1h"
			initial_delay: "5m"
			recent_video_window: "30m"
			operations_window: "15m"
			danger_threshold: 0.75
		}

		cors: {
			origins: ["https://example.com"]
		}

		events: {
			history: {
				max_events: 5000
				max_age: "30m"
			}
		}

		logging: {
			level: "debug"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "data/canvas.db", cfg.Database.Path)

	assert.Equal(t, "data/uploads", cfg.Media.UploadsDir)
	assert.Equal(t, int64(104857600), cfg.Media.MaxUploadBytes)
	assert.Equal(t, []int{64, 256, 1024}, cfg.Media.ThumbnailSizes)
	assert.Equal(t, 80, cfg.Media.WebPQuality)
	assert.Equal(t, []string{"webm"}, cfg.Media.VideoFormats)
	assert.Equal(t, 1280, cfg.Media.VideoMaxWidth)

	assert.Equal(t, "1h", cfg.Cleanup.Interval)
	assert.Equal(t, 0.75, cfg.Cleanup.DangerThreshold)

	assert.Equal(t, []string{"https://example.com"}, cfg.CORS.Origins)

	assert.Equal(t, 5000, cfg.Events.History.MaxEvents)
	assert.Equal(t, "30m", cfg.Events.History.MaxAge)

	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoader_Load_Defaults(t *testing.T) {
	configContent := `{
		version: "1"
		project: { name: "test" }
	}`

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), writeTestConfig(t, configContent))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "database/canvas.db", cfg.Database.Path)
	assert.Equal(t, "uploads", cfg.Media.UploadsDir)
	assert.Equal(t, int64(500*1024*1024), cfg.Media.MaxUploadBytes)
	assert.Equal(t, []int{64, 128, 256, 512, 1024, 2048}, cfg.Media.ThumbnailSizes)
	assert.Equal(t, 85, cfg.Media.WebPQuality)
	assert.Equal(t, 100, cfg.Media.MaxOpPayloadKiB)
	assert.Equal(t, "6h", cfg.Cleanup.Interval)
	assert.Equal(t, 0.5, cfg.Cleanup.DangerThreshold)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Equal(t, 10000, cfg.Events.History.MaxEvents)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoader_Default(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "1", cfg.Version)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "database/canvas.db", cfg.Database.Path)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/path/config.hjson")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	configContent := `{
		version: "1"
		invalid json here {{{
	}`

	loader := NewLoader()
	path := writeTestConfig(t, configContent)
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_Load_ConfigPaths(t *testing.T) {
	dir := t.TempDir()

	hjsonPath := filepath.Join(dir, "canvasd.hjson")
	require.NoError(t, os.WriteFile(hjsonPath, []byte(`{version: "1", project: {name: "hjson"}}`), 0644))

	jsonPath := filepath.Join(dir, "canvasd.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"version": "1", "project": {"name": "json"}}`), 0644))

	loader := NewLoader()

	cfg, err := loader.Load(context.Background(), hjsonPath)
	require.NoError(t, err)
	assert.Equal(t, "hjson", cfg.Project.Name)

	cfg, err = loader.Load(context.Background(), jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Project.Name)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(dir)

	loader := NewLoader()

	_, err := loader.FindConfig()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "canvasd.hjson"), []byte(`{}`), 0644))
	path, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "canvasd.hjson")

	os.Remove(filepath.Join(dir, "canvasd.hjson"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "canvasd.json"), []byte(`{}`), 0644))
	path, err = loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "canvasd.json")
}

// Helper functions

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	path := writeTestConfig(t, content)
	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "canvasd.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
