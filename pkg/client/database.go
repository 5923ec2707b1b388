// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// DatabaseClient provides access to maintenance operations.
//
// Access this client through [Client.Database]:
//
//	size, err := client.Database.Size(ctx)
type DatabaseClient struct {
	c *Client
}

// CleanupOptions tunes a cleanup sweep request.
type CleanupOptions struct {
	// DryRun reports what would be deleted without deleting anything.
	DryRun bool
	// DeleteAllThumbnails additionally wipes thumbnail derivatives for
	// files that survive the sweep, regenerated on next view.
	DeleteAllThumbnails bool
	// Force bypasses the danger-threshold refusal on a majority delete.
	Force bool
}

// Cleanup runs (or dry-runs) the unreferenced-file sweep.
func (d *DatabaseClient) Cleanup(ctx context.Context, opts CleanupOptions) (*SweepResult, error) {
	path := "/database/cleanup?"
	if opts.DryRun {
		path += "dryRun&"
	}
	if opts.DeleteAllThumbnails {
		path += "deleteAllThumbnails&"
	}
	if opts.Force {
		path += "force=true&"
	}

	data, err := d.c.post(ctx, path)
	if err != nil {
		return nil, err
	}
	var result SweepResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse sweep result: %w", err)
	}
	return &result, nil
}

// Size reports on-disk byte counts for the database file and its media
// directories.
func (d *DatabaseClient) Size(ctx context.Context) (*DatabaseSize, error) {
	data, err := d.c.get(ctx, "/database/size")
	if err != nil {
		return nil, err
	}
	var size DatabaseSize
	if err := json.Unmarshal(data, &size); err != nil {
		return nil, fmt.Errorf("failed to parse database size: %w", err)
	}
	return &size, nil
}

// Wipe issues the destructive debug wipe: every domain table, and
// optionally every on-disk upload/thumbnail/transcode. Requires explicit
// confirmation; there is no undo.
func (d *DatabaseClient) Wipe(ctx context.Context, includeFiles bool) error {
	_, err := d.c.postJSON(ctx, "/debug/wipe-database", map[string]interface{}{
		"confirm": true, "includeFiles": includeFiles,
	})
	return err
}
