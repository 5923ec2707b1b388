// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func scanTransaction(row interface{ Scan(...interface{}) error }) (*TransactionRecord, error) {
	var t TransactionRecord
	if err := row.Scan(&t.ID, &t.UserID, &t.CanvasID, &t.Source, &t.State, &t.StartedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

const transactionColumns = `id, user_id, canvas_id, source, state, started_at`

// BeginTransaction records a new active transaction bundle.
func (db *DB) BeginTransaction(ctx context.Context, tx *Tx, id string, userID, canvasID int64, source string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO active_transactions (id, user_id, canvas_id, source, state) VALUES (?, ?, ?, ?, ?)`,
		id, userID, canvasID, source, TransactionActive)
	if err != nil {
		return fmt.Errorf("begin transaction record: %w", err)
	}
	return nil
}

// GetTransaction fetches a transaction bundle by id.
func (db *DB) GetTransaction(ctx context.Context, id string) (*TransactionRecord, error) {
	var t *TransactionRecord
	err := db.Get(ctx, `SELECT `+transactionColumns+` FROM active_transactions WHERE id = ?`,
		[]interface{}{id},
		func(row *sql.Row) error {
			var scanErr error
			t, scanErr = scanTransaction(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetActiveTransactionForUser finds the open transaction bundle, if any, for
// a user on a canvas.
func (db *DB) GetActiveTransactionForUser(ctx context.Context, userID, canvasID int64) (*TransactionRecord, error) {
	var t *TransactionRecord
	err := db.Get(ctx, `
		SELECT `+transactionColumns+` FROM active_transactions
		WHERE user_id = ? AND canvas_id = ? AND state = ? LIMIT 1`,
		[]interface{}{userID, canvasID, TransactionActive},
		func(row *sql.Row) error {
			var scanErr error
			t, scanErr = scanTransaction(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// SetTransactionState transitions a transaction bundle to committed or
// aborted.
func (db *DB) SetTransactionState(ctx context.Context, id string, state TransactionState) error {
	_, err := db.Exec(ctx, `UPDATE active_transactions SET state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("set transaction state: %w", err)
	}
	return nil
}

// OperationsInTransaction returns the operations recorded under a
// transaction id, in sequence order. Aborting a transaction does not call
// it; abort rolls nothing back.
func (db *DB) OperationsInTransaction(ctx context.Context, transactionID string) ([]*Operation, error) {
	var ops []*Operation
	err := db.All(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE transaction_id = ? ORDER BY sequence_number ASC`,
		[]interface{}{transactionID},
		func(rows *sql.Rows) error {
			op, err := scanOperation(rows)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("operations in transaction: %w", err)
	}
	return ops, nil
}
