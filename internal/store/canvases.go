// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateCanvas inserts a new, empty canvas owned by ownerID.
func (db *DB) CreateCanvas(ctx context.Context, name, description string, ownerID int64) (*Canvas, error) {
	res, err := db.Exec(ctx,
		`INSERT INTO canvases (name, description, owner_id) VALUES (?, ?, ?)`,
		name, description, ownerID)
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create canvas: %w", err)
	}

	if _, err := db.Exec(ctx,
		`INSERT INTO canvas_states (canvas_id, state_version) VALUES (?, 0)`, id); err != nil {
		return nil, fmt.Errorf("init canvas state: %w", err)
	}
	if _, err := db.Exec(ctx,
		`INSERT INTO canvas_collaborators (canvas_id, user_id) VALUES (?, ?)`, id, ownerID); err != nil {
		return nil, fmt.Errorf("add owner as collaborator: %w", err)
	}

	return db.GetCanvas(ctx, id)
}

func scanCanvas(row interface{ Scan(...interface{}) error }) (*Canvas, error) {
	var c Canvas
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.OwnerID, &c.CanvasData, &c.LastModified); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCanvas fetches a canvas by id.
func (db *DB) GetCanvas(ctx context.Context, id int64) (*Canvas, error) {
	var c *Canvas
	err := db.Get(ctx,
		`SELECT id, name, description, owner_id, canvas_data, last_modified FROM canvases WHERE id = ?`,
		[]interface{}{id},
		func(row *sql.Row) error {
			var scanErr error
			c, scanErr = scanCanvas(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCanvasesForUser returns every canvas the user owns or collaborates on,
// most recently modified first.
func (db *DB) ListCanvasesForUser(ctx context.Context, userID int64) ([]*Canvas, error) {
	var canvases []*Canvas
	err := db.All(ctx, `
		SELECT DISTINCT c.id, c.name, c.description, c.owner_id, c.canvas_data, c.last_modified
		FROM canvases c
		LEFT JOIN canvas_collaborators cc ON cc.canvas_id = c.id
		WHERE c.owner_id = ? OR cc.user_id = ?
		ORDER BY c.last_modified DESC`,
		[]interface{}{userID, userID},
		func(rows *sql.Rows) error {
			c, err := scanCanvas(rows)
			if err != nil {
				return err
			}
			canvases = append(canvases, c)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list canvases: %w", err)
	}
	return canvases, nil
}

// UpdateCanvasData overwrites the serialized scene and bumps last_modified.
func (db *DB) UpdateCanvasData(ctx context.Context, id int64, canvasData string) error {
	_, err := db.Exec(ctx,
		`UPDATE canvases SET canvas_data = ?, last_modified = CURRENT_TIMESTAMP WHERE id = ?`,
		canvasData, id)
	if err != nil {
		return fmt.Errorf("update canvas data: %w", err)
	}
	return nil
}

// UpdateCanvasMeta renames or re-describes a canvas.
func (db *DB) UpdateCanvasMeta(ctx context.Context, id int64, name, description string) error {
	_, err := db.Exec(ctx,
		`UPDATE canvases SET name = ?, description = ? WHERE id = ?`, name, description, id)
	if err != nil {
		return fmt.Errorf("update canvas meta: %w", err)
	}
	return nil
}

// DeleteCanvas removes a canvas and everything keyed to it.
func (db *DB) DeleteCanvas(ctx context.Context, id int64) error {
	return db.Transaction(ctx, func(tx *Tx) error {
		stmts := []string{
			`DELETE FROM canvas_collaborators WHERE canvas_id = ?`,
			`DELETE FROM canvas_versions WHERE canvas_id = ?`,
			`DELETE FROM operations WHERE canvas_id = ?`,
			`DELETE FROM active_sessions WHERE canvas_id = ?`,
			`DELETE FROM canvas_states WHERE canvas_id = ?`,
			`DELETE FROM active_transactions WHERE canvas_id = ?`,
			`DELETE FROM user_viewport_states WHERE canvas_id = ?`,
			`UPDATE files SET canvas_id = NULL WHERE canvas_id = ?`,
			`DELETE FROM canvases WHERE id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return fmt.Errorf("delete canvas cascade: %w", err)
			}
		}
		return nil
	})
}

// AddCollaborator grants userID access to canvasID.
func (db *DB) AddCollaborator(ctx context.Context, canvasID, userID int64) error {
	_, err := db.Exec(ctx,
		`INSERT OR IGNORE INTO canvas_collaborators (canvas_id, user_id) VALUES (?, ?)`,
		canvasID, userID)
	if err != nil {
		return fmt.Errorf("add collaborator: %w", err)
	}
	return nil
}

// StateVersion returns the current state_version counter for a canvas.
func (db *DB) StateVersion(ctx context.Context, canvasID int64) (int64, error) {
	var version int64
	err := db.Get(ctx,
		`SELECT state_version FROM canvas_states WHERE canvas_id = ?`,
		[]interface{}{canvasID},
		func(row *sql.Row) error { return row.Scan(&version) })
	if err != nil {
		return 0, fmt.Errorf("get state version: %w", err)
	}
	return version, nil
}

// BumpStateVersion atomically increments and returns the new state_version.
func (db *DB) BumpStateVersion(ctx context.Context, tx *Tx, canvasID int64) (int64, error) {
	if _, err := tx.Exec(ctx,
		`UPDATE canvas_states SET state_version = state_version + 1 WHERE canvas_id = ?`, canvasID); err != nil {
		return 0, fmt.Errorf("bump state version: %w", err)
	}
	var version int64
	err := tx.Get(ctx,
		`SELECT state_version FROM canvas_states WHERE canvas_id = ?`,
		[]interface{}{canvasID},
		func(row *sql.Row) error { return row.Scan(&version) })
	if err != nil {
		return 0, fmt.Errorf("read bumped state version: %w", err)
	}
	return version, nil
}

// SaveVersionSnapshot records a point-in-time snapshot for history browsing.
func (db *DB) SaveVersionSnapshot(ctx context.Context, canvasID, version int64, snapshot string) error {
	_, err := db.Exec(ctx,
		`INSERT OR REPLACE INTO canvas_versions (canvas_id, version, snapshot) VALUES (?, ?, ?)`,
		canvasID, version, snapshot)
	if err != nil {
		return fmt.Errorf("save version snapshot: %w", err)
	}
	return nil
}
