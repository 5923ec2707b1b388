// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package store is the persistence facade: a thin typed accessor over an
// embedded SQL engine for users, canvases, the operations log, files,
// sessions, and transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the underlying SQL engine and exposes run/get/all/exec/transaction
// primitives plus typed accessors per entity.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1) // single-writer SQLite; serializes at the driver

	if _, err := conn.Exec(schemaDDL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close releases the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Exec runs a statement that does not return rows.
func (db *DB) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return res, nil
}

// Get scans a single row into dest via fn.
func (db *DB) Get(ctx context.Context, query string, args []interface{}, fn func(*sql.Row) error) error {
	row := db.conn.QueryRowContext(ctx, query, args...)
	if err := fn(row); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("get: %w", err)
	}
	return nil
}

// All runs a query and invokes fn once per row.
func (db *DB) All(ctx context.Context, query string, args []interface{}, fn func(*sql.Rows) error) error {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
	}
	return rows.Err()
}

// Tx is a running transaction, handed to the callback in Transaction.
type Tx struct {
	tx *sql.Tx
}

// Exec runs a statement within the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tx exec: %w", err)
	}
	return res, nil
}

// Get scans a single row within the transaction.
func (t *Tx) Get(ctx context.Context, query string, args []interface{}, fn func(*sql.Row) error) error {
	row := t.tx.QueryRowContext(ctx, query, args...)
	if err := fn(row); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("tx get: %w", err)
	}
	return nil
}

// All runs a query within the transaction.
func (t *Tx) All(ctx context.Context, query string, args []interface{}, fn func(*sql.Rows) error) error {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("tx query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("tx scan row: %w", err)
		}
	}
	return rows.Err()
}

// Transaction runs fn inside a BEGIN/COMMIT block, rolling back on error or
// panic.
func (db *DB) Transaction(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			sqlTx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
