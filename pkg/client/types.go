// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import "time"

// Canvas is a persisted scene: the JSON blob lives in CanvasData.
type Canvas struct {
	ID           int64     `json:"ID"`
	Name         string    `json:"Name"`
	Description  string    `json:"Description"`
	OwnerID      int64     `json:"OwnerID"`
	CanvasData   string    `json:"CanvasData"`
	LastModified time.Time `json:"LastModified"`
}

// CanvasState is the scene blob and version returned by GET
// /canvases/{id}/state, the HTTP analogue of request_full_sync.
type CanvasState struct {
	CanvasData string `json:"canvasData"`
	Version    int64  `json:"version"`
}

// NavigationState is a user's pan/zoom viewport for a canvas.
type NavigationState struct {
	Scale     float64    `json:"scale"`
	Offset    [2]float64 `json:"offset"`
	Timestamp int64      `json:"timestamp"`
}

// UploadResult is the response to a media upload.
type UploadResult struct {
	Success        bool   `json:"success"`
	URL            string `json:"url"`
	Hash           string `json:"hash"`
	Filename       string `json:"filename"`
	ServerFilename string `json:"serverFilename"`
	Size           int64  `json:"size"`
	Processing     bool   `json:"processing,omitempty"`
	Error          string `json:"error,omitempty"`
}

// SweepResult reports what a database cleanup pass did or would do.
type SweepResult struct {
	Candidates int    `json:"candidates"`
	Deleted    int    `json:"deleted"`
	BytesFreed int64  `json:"bytesFreed"`
	DryRun     bool   `json:"dryRun"`
	Refused    bool   `json:"refused,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// DatabaseSize reports on-disk byte counts for the database and its media
// directories.
type DatabaseSize struct {
	Database   int64 `json:"database"`
	Uploads    int64 `json:"uploads"`
	Thumbnails int64 `json:"thumbnails"`
	Transcodes int64 `json:"transcodes"`
}

// Health is the server's self-reported status.
type Health struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	Version   string   `json:"version"`
	Features  []string `json:"features"`
}
