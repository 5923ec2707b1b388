package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_Validate_ValidConfig(t *testing.T) {
	cfg := Default()
	cfg.Project.Name = "test-project"

	validator := NewValidator()
	err := validator.Validate(cfg)
	assert.NoError(t, err)
}

func TestValidator_Validate_ServerConfig(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port out of range (negative)", -1},
		{"port out of range (too high)", 70000},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Server.Port = tt.port
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "port")
		})
	}
}

func TestValidator_Validate_MediaConfig(t *testing.T) {
	t.Run("negative max upload bytes", func(t *testing.T) {
		cfg := Default()
		cfg.Media.MaxUploadBytes = -1
		err := NewValidator().Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_upload_bytes")
	})

	t.Run("non-positive thumbnail size", func(t *testing.T) {
		cfg := Default()
		cfg.Media.ThumbnailSizes = []int{64, 0, 256}
		err := NewValidator().Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thumbnail_sizes")
	})

	t.Run("webp quality out of range", func(t *testing.T) {
		cfg := Default()
		cfg.Media.WebPQuality = 150
		err := NewValidator().Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "webp_quality")
	})

	t.Run("unsupported video format", func(t *testing.T) {
		cfg := Default()
		cfg.Media.VideoFormats = []string{"avi"}
		err := NewValidator().Validate(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "video_formats")
	})
}

func TestValidator_Validate_CleanupConfig(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantError bool
	}{
		{"zero is valid (min)", 0, false},
		{"one is valid (max)", 1, false},
		{"mid-range is valid", 0.5, false},
		{"negative is invalid", -0.1, true},
		{"above one is invalid", 1.1, true},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Cleanup.DangerThreshold = tt.threshold
			err := validator.Validate(cfg)
			if tt.wantError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "danger_threshold")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "server.port", Message: "must be between 0 and 65535"},
			{Field: "media.webp_quality", Message: "must be between 0 and 100"},
		},
	}

	errStr := err.Error()
	assert.Contains(t, errStr, "server.port")
	assert.Contains(t, errStr, "media.webp_quality")
}

func TestValidationError_IsEmpty(t *testing.T) {
	err := &ValidationError{}
	assert.True(t, err.IsEmpty())

	err.Errors = append(err.Errors, FieldError{Field: "test", Message: "error"})
	assert.False(t, err.IsEmpty())
}
