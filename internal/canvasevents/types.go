// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package canvasevents provides the in-process event bus that decouples
// background work (media processing) from per-canvas broadcast.
package canvasevents

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	CanvasID  string                 `json:"canvas_id"`
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types    []string  // Event types to match (supports wildcards)
	CanvasID string    // Filter by canvas
	Since    time.Time // Events after this time
	Until    time.Time // Events before this time
	Limit    int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Event types emitted by the media pipeline and collaboration layer.
const (
	// Upload lifecycle
	EventUploadReceived = "upload.received"
	EventUploadFailed   = "upload.failed"

	// Thumbnail generation
	EventThumbnailStarted   = "thumbnail.started"
	EventThumbnailCompleted = "thumbnail.completed"
	EventThumbnailFailed    = "thumbnail.failed"

	// Video transcode progress, consumed by collab and re-broadcast to
	// the canvas's connected sessions as video_processing_update events.
	EventVideoProcessingStart    = "video.processing.start"
	EventVideoProcessingProgress = "video.processing.progress"
	EventVideoProcessingComplete = "video.processing.complete"
	EventVideoProcessingFailed   = "video.processing.failed"
	EventVideoProcessingCanceled = "video.processing.canceled"

	// Database maintenance
	EventCleanupStarted   = "cleanup.started"
	EventCleanupCompleted = "cleanup.completed"
)
