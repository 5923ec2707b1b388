package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateServer(cfg, errs)
	v.validateMedia(cfg, errs)
	v.validateCleanup(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port != 0 {
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			errs.Add("server.port", "must be between 0 and 65535")
		}
	}
}

func (v *Validator) validateMedia(cfg *Config, errs *ValidationError) {
	if cfg.Media.MaxUploadBytes < 0 {
		errs.Add("media.max_upload_bytes", "must be non-negative")
	}
	for i, size := range cfg.Media.ThumbnailSizes {
		if size <= 0 {
			errs.Add(fmt.Sprintf("media.thumbnail_sizes[%d]", i), "must be positive")
		}
	}
	if cfg.Media.WebPQuality < 0 || cfg.Media.WebPQuality > 100 {
		errs.Add("media.webp_quality", "must be between 0 and 100")
	}
	for i, format := range cfg.Media.VideoFormats {
		switch format {
		case "webm", "mp4":
		default:
			errs.Add(fmt.Sprintf("media.video_formats[%d]", i), fmt.Sprintf("unsupported format %q", format))
		}
	}
}

func (v *Validator) validateCleanup(cfg *Config, errs *ValidationError) {
	if cfg.Cleanup.DangerThreshold < 0 || cfg.Cleanup.DangerThreshold > 1 {
		errs.Add("cleanup.danger_threshold", "must be between 0 and 1")
	}
}
