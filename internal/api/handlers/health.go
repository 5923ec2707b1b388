// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness/feature-discovery endpoint.
type HealthHandler struct {
	version  string
	features []string
}

// NewHealthHandler builds a HealthHandler reporting the given version and
// enabled feature flags (e.g. "video_processing", "thumbnails").
func NewHealthHandler(version string, features []string) *HealthHandler {
	return &HealthHandler{version: version, features: features}
}

// ServeHTTP answers GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"version":   h.version,
		"features":  h.features,
	})
}
