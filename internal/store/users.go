// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// userColors is the palette assigned to new users in creation order, cycling
// every 15 signups.
var userColors = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
	"#008080", "#e6beff", "#9a6324", "#800000", "#808000",
}

// NextUserColor returns the palette color for the nth user (0-indexed).
func NextUserColor(userCount int) string {
	return userColors[userCount%len(userColors)]
}

// CreateUser inserts a new user, assigning the next palette color.
func (db *DB) CreateUser(ctx context.Context, username, displayName string) (*User, error) {
	var count int
	if err := db.Get(ctx, `SELECT COUNT(*) FROM users`, nil, func(row *sql.Row) error {
		return row.Scan(&count)
	}); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	color := NextUserColor(count)
	res, err := db.Exec(ctx,
		`INSERT INTO users (username, display_name, color) VALUES (?, ?, ?)`,
		username, displayName, color)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return db.GetUser(ctx, id)
}

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Color, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser fetches a user by id.
func (db *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	var u *User
	err := db.Get(ctx,
		`SELECT id, username, display_name, color, created_at FROM users WHERE id = ?`,
		[]interface{}{id},
		func(row *sql.Row) error {
			var scanErr error
			u, scanErr = scanUser(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByUsername fetches a user by username, or sql.ErrNoRows if absent.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u *User
	err := db.Get(ctx,
		`SELECT id, username, display_name, color, created_at FROM users WHERE username = ?`,
		[]interface{}{username},
		func(row *sql.Row) error {
			var scanErr error
			u, scanErr = scanUser(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetOrCreateUser returns the existing user for username, creating one with
// displayName if none exists.
func (db *DB) GetOrCreateUser(ctx context.Context, username, displayName string) (*User, error) {
	u, err := db.GetUserByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	return db.CreateUser(ctx, username, displayName)
}
