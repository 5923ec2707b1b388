// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

const schemaDDL = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	display_name  TEXT NOT NULL,
	color         TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canvases (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	name          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	owner_id      INTEGER NOT NULL REFERENCES users(id),
	canvas_data   TEXT NOT NULL DEFAULT '{"nodes":[],"version":0}',
	last_modified DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canvas_collaborators (
	canvas_id INTEGER NOT NULL REFERENCES canvases(id),
	user_id   INTEGER NOT NULL REFERENCES users(id),
	PRIMARY KEY (canvas_id, user_id)
);

CREATE TABLE IF NOT EXISTS canvas_versions (
	canvas_id  INTEGER NOT NULL REFERENCES canvases(id),
	version    INTEGER NOT NULL,
	snapshot   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (canvas_id, version)
);

CREATE TABLE IF NOT EXISTS operations (
	id              TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	params          TEXT NOT NULL,
	undo_data       TEXT NOT NULL DEFAULT '',
	user_id         INTEGER NOT NULL REFERENCES users(id),
	canvas_id       INTEGER NOT NULL REFERENCES canvases(id),
	transaction_id  TEXT,
	sequence_number INTEGER NOT NULL,
	state           TEXT NOT NULL DEFAULT 'applied',
	timestamp       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	undone_at       DATETIME,
	undone_by       INTEGER REFERENCES users(id),
	redone_at       DATETIME,
	redone_by       INTEGER REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_operations_canvas_seq ON operations(canvas_id, sequence_number);
CREATE INDEX IF NOT EXISTS idx_operations_user_state ON operations(user_id, state);
CREATE INDEX IF NOT EXISTS idx_operations_user_canvas ON operations(user_id, canvas_id);

CREATE TABLE IF NOT EXISTS files (
	filename          TEXT PRIMARY KEY,
	original_name     TEXT NOT NULL,
	mime_type         TEXT NOT NULL,
	size              INTEGER NOT NULL,
	hash              TEXT NOT NULL,
	user_id           INTEGER NOT NULL REFERENCES users(id),
	canvas_id         INTEGER REFERENCES canvases(id),
	processed_formats TEXT NOT NULL DEFAULT '{}',
	processing_status TEXT NOT NULL DEFAULT 'pending',
	processing_error  TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_files_hash ON files(hash);

CREATE TABLE IF NOT EXISTS active_sessions (
	socket_id  TEXT PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id),
	canvas_id  INTEGER NOT NULL REFERENCES canvases(id),
	tab_id     TEXT NOT NULL,
	joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_ping  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS canvas_states (
	canvas_id     INTEGER PRIMARY KEY REFERENCES canvases(id),
	state_version INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS active_transactions (
	id         TEXT PRIMARY KEY,
	user_id    INTEGER NOT NULL REFERENCES users(id),
	canvas_id  INTEGER NOT NULL REFERENCES canvases(id),
	source     TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT 'active',
	started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS user_viewport_states (
	user_id         INTEGER NOT NULL REFERENCES users(id),
	canvas_id       INTEGER NOT NULL REFERENCES canvases(id),
	scale           REAL NOT NULL DEFAULT 1,
	offset_x        REAL NOT NULL DEFAULT 0,
	offset_y        REAL NOT NULL DEFAULT 0,
	updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, canvas_id)
);
`
