// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func scanOperation(row interface{ Scan(...interface{}) error }) (*Operation, error) {
	var o Operation
	var txID sql.NullString
	var undoneAt, redoneAt sql.NullTime
	var undoneBy, redoneBy sql.NullInt64

	err := row.Scan(&o.ID, &o.Type, &o.Params, &o.UndoData, &o.UserID, &o.CanvasID,
		&txID, &o.SequenceNumber, &o.State, &o.Timestamp,
		&undoneAt, &undoneBy, &redoneAt, &redoneBy)
	if err != nil {
		return nil, err
	}

	o.TransactionID = txID.String
	if undoneAt.Valid {
		o.UndoneAt = &undoneAt.Time
	}
	if undoneBy.Valid {
		o.UndoneBy = &undoneBy.Int64
	}
	if redoneAt.Valid {
		o.RedoneAt = &redoneAt.Time
	}
	if redoneBy.Valid {
		o.RedoneBy = &redoneBy.Int64
	}
	return &o, nil
}

const operationColumns = `id, type, params, undo_data, user_id, canvas_id, transaction_id,
	sequence_number, state, timestamp, undone_at, undone_by, redone_at, redone_by`

// InsertOperation appends an operation to the log within a transaction,
// assigning it the next sequence number for its canvas.
func (db *DB) InsertOperation(ctx context.Context, tx *Tx, op *Operation) (*Operation, error) {
	var maxSeq sql.NullInt64
	if err := tx.Get(ctx,
		`SELECT MAX(sequence_number) FROM operations WHERE canvas_id = ?`,
		[]interface{}{op.CanvasID},
		func(row *sql.Row) error { return row.Scan(&maxSeq) }); err != nil {
		return nil, fmt.Errorf("next sequence number: %w", err)
	}
	op.SequenceNumber = maxSeq.Int64 + 1
	op.State = OperationApplied
	if op.Timestamp.IsZero() {
		op.Timestamp = time.Now().UTC()
	}

	var txID interface{}
	if op.TransactionID != "" {
		txID = op.TransactionID
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO operations (id, type, params, undo_data, user_id, canvas_id, transaction_id, sequence_number, state, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.Type, op.Params, op.UndoData, op.UserID, op.CanvasID, txID,
		op.SequenceNumber, op.State, op.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert operation: %w", err)
	}
	return op, nil
}

// GetOperation fetches a single operation by id.
func (db *DB) GetOperation(ctx context.Context, id string) (*Operation, error) {
	var op *Operation
	err := db.Get(ctx, `SELECT `+operationColumns+` FROM operations WHERE id = ?`,
		[]interface{}{id},
		func(row *sql.Row) error {
			var scanErr error
			op, scanErr = scanOperation(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ListOperationsForCanvas returns every operation for a canvas in sequence
// order, the substrate for undo/redo stack reconstruction on restart.
func (db *DB) ListOperationsForCanvas(ctx context.Context, canvasID int64) ([]*Operation, error) {
	var ops []*Operation
	err := db.All(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE canvas_id = ? ORDER BY sequence_number ASC`,
		[]interface{}{canvasID},
		func(rows *sql.Rows) error {
			op, err := scanOperation(rows)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list operations for canvas: %w", err)
	}
	return ops, nil
}

// ListOperationsForUser returns a user's operations on a canvas that are in
// the given state, in sequence order, the per-user undo/redo stack substrate.
func (db *DB) ListOperationsForUser(ctx context.Context, canvasID, userID int64, state OperationState) ([]*Operation, error) {
	var ops []*Operation
	err := db.All(ctx,
		`SELECT `+operationColumns+` FROM operations
		 WHERE canvas_id = ? AND user_id = ? AND state = ?
		 ORDER BY sequence_number ASC`,
		[]interface{}{canvasID, userID, state},
		func(rows *sql.Rows) error {
			op, err := scanOperation(rows)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list operations for user: %w", err)
	}
	return ops, nil
}

// ListOperationsSince returns every operation for a canvas with a sequence
// number greater than lastSequence, in order, the substrate for
// sync_check{lastSequence}.
func (db *DB) ListOperationsSince(ctx context.Context, canvasID, lastSequence int64) ([]*Operation, error) {
	var ops []*Operation
	err := db.All(ctx,
		`SELECT `+operationColumns+` FROM operations
		 WHERE canvas_id = ? AND sequence_number > ?
		 ORDER BY sequence_number ASC`,
		[]interface{}{canvasID, lastSequence},
		func(rows *sql.Rows) error {
			op, err := scanOperation(rows)
			if err != nil {
				return err
			}
			ops = append(ops, op)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list operations since: %w", err)
	}
	return ops, nil
}

// MarkUndone flips an operation to the undone state.
func (db *DB) MarkUndone(ctx context.Context, tx *Tx, id string, byUser int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE operations SET state = ?, undone_at = CURRENT_TIMESTAMP, undone_by = ? WHERE id = ?`,
		OperationUndone, byUser, id)
	if err != nil {
		return fmt.Errorf("mark operation undone: %w", err)
	}
	return nil
}

// MarkRedone flips an operation back to applied.
func (db *DB) MarkRedone(ctx context.Context, tx *Tx, id string, byUser int64) error {
	_, err := tx.Exec(ctx,
		`UPDATE operations SET state = ?, redone_at = CURRENT_TIMESTAMP, redone_by = ? WHERE id = ?`,
		OperationApplied, byUser, id)
	if err != nil {
		return fmt.Errorf("mark operation redone: %w", err)
	}
	return nil
}

// ClearUndoHistory deletes every operation row for a canvas, across every
// user, the backing store for clear_undo_history{canvasId} which resets
// undo/redo for the whole canvas rather than one user's stack.
func (db *DB) ClearUndoHistory(ctx context.Context, canvasID int64) error {
	_, err := db.Exec(ctx, `DELETE FROM operations WHERE canvas_id = ?`, canvasID)
	if err != nil {
		return fmt.Errorf("clear undo history: %w", err)
	}
	return nil
}
