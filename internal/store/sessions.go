// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Session is a live WebSocket connection's presence record.
type Session struct {
	SocketID string
	UserID   int64
	CanvasID int64
	TabID    string
}

// Viewport is a user's last-known pan/zoom state on a canvas.
type Viewport struct {
	UserID   int64
	CanvasID int64
	Scale    float64
	OffsetX  float64
	OffsetY  float64
}

// UpsertSession records or refreshes presence for a connected socket.
func (db *DB) UpsertSession(ctx context.Context, s Session) error {
	_, err := db.Exec(ctx, `
		INSERT INTO active_sessions (socket_id, user_id, canvas_id, tab_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(socket_id) DO UPDATE SET
			user_id = excluded.user_id,
			canvas_id = excluded.canvas_id,
			tab_id = excluded.tab_id,
			last_ping = CURRENT_TIMESTAMP`,
		s.SocketID, s.UserID, s.CanvasID, s.TabID)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// TouchSession refreshes a session's last-ping timestamp.
func (db *DB) TouchSession(ctx context.Context, socketID string) error {
	_, err := db.Exec(ctx,
		`UPDATE active_sessions SET last_ping = CURRENT_TIMESTAMP WHERE socket_id = ?`, socketID)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// RemoveSession deletes a session on socket close.
func (db *DB) RemoveSession(ctx context.Context, socketID string) error {
	_, err := db.Exec(ctx, `DELETE FROM active_sessions WHERE socket_id = ?`, socketID)
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// ListSessionsForCanvas returns every live session on a canvas, the presence
// roster used to compute active_users.
func (db *DB) ListSessionsForCanvas(ctx context.Context, canvasID int64) ([]Session, error) {
	var sessions []Session
	err := db.All(ctx,
		`SELECT socket_id, user_id, canvas_id, tab_id FROM active_sessions WHERE canvas_id = ?`,
		[]interface{}{canvasID},
		func(rows *sql.Rows) error {
			var s Session
			if err := rows.Scan(&s.SocketID, &s.UserID, &s.CanvasID, &s.TabID); err != nil {
				return err
			}
			sessions = append(sessions, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list sessions for canvas: %w", err)
	}
	return sessions, nil
}

// SaveViewport persists a user's pan/zoom state on a canvas.
func (db *DB) SaveViewport(ctx context.Context, v Viewport) error {
	_, err := db.Exec(ctx, `
		INSERT INTO user_viewport_states (user_id, canvas_id, scale, offset_x, offset_y)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, canvas_id) DO UPDATE SET
			scale = excluded.scale,
			offset_x = excluded.offset_x,
			offset_y = excluded.offset_y,
			updated_at = CURRENT_TIMESTAMP`,
		v.UserID, v.CanvasID, v.Scale, v.OffsetX, v.OffsetY)
	if err != nil {
		return fmt.Errorf("save viewport: %w", err)
	}
	return nil
}

// GetViewport fetches a user's last-known viewport on a canvas, or
// sql.ErrNoRows if never set.
func (db *DB) GetViewport(ctx context.Context, userID, canvasID int64) (*Viewport, error) {
	var v Viewport
	err := db.Get(ctx,
		`SELECT user_id, canvas_id, scale, offset_x, offset_y FROM user_viewport_states WHERE user_id = ? AND canvas_id = ?`,
		[]interface{}{userID, canvasID},
		func(row *sql.Row) error {
			return row.Scan(&v.UserID, &v.CanvasID, &v.Scale, &v.OffsetX, &v.OffsetY)
		})
	if err != nil {
		return nil, err
	}
	return &v, nil
}
