// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// CanvasClient provides access to canvas CRUD and viewport operations.
//
// Access this client through [Client.Canvases]:
//
//	canvases, err := client.Canvases.List(ctx, ownerID)
type CanvasClient struct {
	c *Client
}

// List returns every canvas a user owns or collaborates on.
func (s *CanvasClient) List(ctx context.Context, userID int64) ([]Canvas, error) {
	data, err := s.c.get(ctx, "/canvases?userId="+strconv.FormatInt(userID, 10))
	if err != nil {
		return nil, err
	}
	var canvases []Canvas
	if err := json.Unmarshal(data, &canvases); err != nil {
		return nil, fmt.Errorf("failed to parse canvases: %w", err)
	}
	return canvases, nil
}

// Create makes a new, empty canvas owned by ownerID.
func (s *CanvasClient) Create(ctx context.Context, name, description string, ownerID int64) (*Canvas, error) {
	data, err := s.c.postJSON(ctx, "/canvases", map[string]interface{}{
		"name": name, "description": description, "ownerId": ownerID,
	})
	if err != nil {
		return nil, err
	}
	var canvas Canvas
	if err := json.Unmarshal(data, &canvas); err != nil {
		return nil, fmt.Errorf("failed to parse canvas: %w", err)
	}
	return &canvas, nil
}

// Get returns one canvas's metadata and current scene blob.
func (s *CanvasClient) Get(ctx context.Context, id int64) (*Canvas, error) {
	data, err := s.c.get(ctx, "/canvases/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	var canvas Canvas
	if err := json.Unmarshal(data, &canvas); err != nil {
		return nil, fmt.Errorf("failed to parse canvas: %w", err)
	}
	return &canvas, nil
}

// Update renames or re-describes a canvas.
func (s *CanvasClient) Update(ctx context.Context, id int64, name, description string) (*Canvas, error) {
	data, err := s.c.putJSON(ctx, "/canvases/"+strconv.FormatInt(id, 10), map[string]interface{}{
		"name": name, "description": description,
	})
	if err != nil {
		return nil, err
	}
	var canvas Canvas
	if err := json.Unmarshal(data, &canvas); err != nil {
		return nil, fmt.Errorf("failed to parse canvas: %w", err)
	}
	return &canvas, nil
}

// Delete removes a canvas and everything keyed to it.
func (s *CanvasClient) Delete(ctx context.Context, id int64) error {
	_, err := s.c.delete(ctx, "/canvases/"+strconv.FormatInt(id, 10))
	return err
}

// GetState returns a canvas's scene blob and version.
func (s *CanvasClient) GetState(ctx context.Context, id int64) (*CanvasState, error) {
	data, err := s.c.get(ctx, "/canvases/"+strconv.FormatInt(id, 10)+"/state")
	if err != nil {
		return nil, err
	}
	var state CanvasState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse canvas state: %w", err)
	}
	return &state, nil
}

// PatchState persists a user's pan/zoom viewport for a canvas. scale must
// fall in (0, 20].
func (s *CanvasClient) PatchState(ctx context.Context, id, userID int64, nav NavigationState) error {
	_, err := s.c.patchJSON(ctx, "/canvases/"+strconv.FormatInt(id, 10)+"/state", map[string]interface{}{
		"navigation_state": nav, "userId": userID,
	})
	return err
}

// Health reports the server's liveness and enabled feature set.
func (s *CanvasClient) Health(ctx context.Context) (*Health, error) {
	data, err := s.c.get(ctx, "/health")
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse health: %w", err)
	}
	return &h, nil
}
