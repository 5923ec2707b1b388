// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package undo is the undo/redo sync: it orchestrates undo/redo across the
// canvas state manager and the operation history, computing inverse deltas,
// applying them under the canvas's lock, and reporting conflicts without
// blocking on them.
package undo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotoshake/canvasd/internal/canvas"
	"github.com/rotoshake/canvasd/internal/history"
	"github.com/rotoshake/canvasd/internal/store"
)

// CanvasManager is the slice of canvas.Manager the orchestrator needs: the
// ability to mutate a canvas's loaded state under its lock, and to persist
// it afterward.
type CanvasManager interface {
	WithLock(ctx context.Context, canvasID int64, fn func(*canvas.CanvasState) error) error
	PersistState(ctx context.Context, state *canvas.CanvasState) error
}

// HistoryManager is the slice of history.Manager the orchestrator needs.
type HistoryManager interface {
	PeekUndo(ctx context.Context, userID, canvasID int64) (history.StackEntry, bool, error)
	PeekRedo(ctx context.Context, userID, canvasID int64) (history.StackEntry, bool, error)
	PopUndoToRedo(ctx context.Context, userID, canvasID int64) (history.StackEntry, bool, error)
	PopRedoToUndo(ctx context.Context, userID, canvasID int64) (history.StackEntry, bool, error)
	GetUndoState(ctx context.Context, userID, canvasID int64) (history.UndoState, error)
	ClearAllForCanvas(canvasID int64)
	UndoHistory(ctx context.Context, userID, canvasID int64, limit int, showAllUsers bool) ([]*store.Operation, error)
}

// Store is the slice of the persistence facade the orchestrator needs
// directly, beyond what CanvasManager/HistoryManager already wrap.
type Store interface {
	GetOperation(ctx context.Context, id string) (*store.Operation, error)
	Transaction(ctx context.Context, fn func(*store.Tx) error) error
	MarkUndone(ctx context.Context, tx *store.Tx, id string, byUser int64) error
	MarkRedone(ctx context.Context, tx *store.Tx, id string, byUser int64) error
	BumpStateVersion(ctx context.Context, tx *store.Tx, canvasID int64) (int64, error)
	ListOperationsForCanvas(ctx context.Context, canvasID int64) ([]*store.Operation, error)
	ClearUndoHistory(ctx context.Context, canvasID int64) error
}

// Manager orchestrates undo/redo for a canvas server.
type Manager struct {
	canvas  CanvasManager
	history HistoryManager
	store   Store
}

// NewManager builds an undo/redo orchestrator over the given collaborators.
func NewManager(cm CanvasManager, hm HistoryManager, s Store) *Manager {
	return &Manager{canvas: cm, history: hm, store: s}
}

// Result reports the outcome of an undo or redo, ready for the
// collaboration manager to route to the appropriate sockets.
type Result struct {
	Success                 bool
	Reason                  string // set when Success is false
	StateVersion            int64
	Changes                 *canvas.ChangeSet
	ConflictingOperationIDs []string // set on undo; reported, not blocking
	UndoState               history.UndoState
}

// Undo performs one undo step for userID on canvasID: it inverts the top
// undo-stack entry (a single operation or a whole transaction bundle) as one
// atomic version bump, per §4.3's undo flow.
func (m *Manager) Undo(ctx context.Context, userID, canvasID int64) *Result {
	entry, ok, err := m.history.PeekUndo(ctx, userID, canvasID)
	if err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}
	if !ok {
		return &Result{Success: false, Reason: "Nothing to undo"}
	}
	ids := history.OperationIDs(entry)

	conflicts, err := m.detectConflicts(ctx, canvasID, ids)
	if err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}

	changes := &canvas.ChangeSet{}
	var newVersion int64

	applyErr := m.canvas.WithLock(ctx, canvasID, func(state *canvas.CanvasState) error {
		// Inverses apply in reverse of the original apply order.
		for i := len(ids) - 1; i >= 0; i-- {
			op, err := m.store.GetOperation(ctx, ids[i])
			if err != nil {
				return fmt.Errorf("load operation %s: %w", ids[i], err)
			}
			undoData, err := decodeJSONObject(op.UndoData)
			if err != nil {
				return fmt.Errorf("decode undo data for %s: %w", ids[i], err)
			}
			// A missing or unrecognized undoData is a non-fatal skip, not
			// an error: the rest of the bundle still undoes.
			if c, applied := canvas.ApplyUndoData(state, undoData); applied {
				mergeChanges(changes, c)
			}
		}
		state.StateVersion++
		newVersion = state.StateVersion

		txErr := m.store.Transaction(ctx, func(tx *store.Tx) error {
			for _, id := range ids {
				if err := m.store.MarkUndone(ctx, tx, id, userID); err != nil {
					return err
				}
			}
			if _, err := m.store.BumpStateVersion(ctx, tx, canvasID); err != nil {
				return err
			}
			return nil
		})
		if txErr != nil {
			state.StateVersion--
			return fmt.Errorf("persist undo: %w", txErr)
		}
		if err := m.canvas.PersistState(ctx, state); err != nil {
			state.StateVersion--
			return fmt.Errorf("persist canvas data: %w", err)
		}
		return nil
	})
	if applyErr != nil {
		return &Result{Success: false, Reason: applyErr.Error()}
	}

	if _, _, err := m.history.PopUndoToRedo(ctx, userID, canvasID); err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}
	undoState, err := m.history.GetUndoState(ctx, userID, canvasID)
	if err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}

	return &Result{
		Success:                 true,
		StateVersion:            newVersion,
		Changes:                 changes,
		ConflictingOperationIDs: conflicts,
		UndoState:               undoState,
	}
}

// Redo re-applies the top redo-stack entry in its original order via the
// normal operation appliers (not an inverse), per §4.3's symmetric redo
// flow, as one atomic version bump.
func (m *Manager) Redo(ctx context.Context, userID, canvasID int64) *Result {
	entry, ok, err := m.history.PeekRedo(ctx, userID, canvasID)
	if err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}
	if !ok {
		return &Result{Success: false, Reason: "Nothing to redo"}
	}
	ids := history.OperationIDs(entry)

	changes := &canvas.ChangeSet{}
	var newVersion int64

	applyErr := m.canvas.WithLock(ctx, canvasID, func(state *canvas.CanvasState) error {
		for _, id := range ids {
			op, err := m.store.GetOperation(ctx, id)
			if err != nil {
				return fmt.Errorf("load operation %s: %w", id, err)
			}
			params, err := decodeJSONObject(op.Params)
			if err != nil {
				return fmt.Errorf("decode params for %s: %w", id, err)
			}
			c, err := canvas.ApplyForward(state, &canvas.Operation{
				ID: op.ID, Type: op.Type, Params: params, UserID: op.UserID, CanvasID: op.CanvasID,
			})
			if err != nil {
				return fmt.Errorf("reapply operation %s: %w", id, err)
			}
			mergeChanges(changes, c)
		}
		state.StateVersion++
		newVersion = state.StateVersion

		txErr := m.store.Transaction(ctx, func(tx *store.Tx) error {
			for _, id := range ids {
				if err := m.store.MarkRedone(ctx, tx, id, userID); err != nil {
					return err
				}
			}
			if _, err := m.store.BumpStateVersion(ctx, tx, canvasID); err != nil {
				return err
			}
			return nil
		})
		if txErr != nil {
			state.StateVersion--
			return fmt.Errorf("persist redo: %w", txErr)
		}
		if err := m.canvas.PersistState(ctx, state); err != nil {
			state.StateVersion--
			return fmt.Errorf("persist canvas data: %w", err)
		}
		return nil
	})
	if applyErr != nil {
		return &Result{Success: false, Reason: applyErr.Error()}
	}

	if _, _, err := m.history.PopRedoToUndo(ctx, userID, canvasID); err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}
	undoState, err := m.history.GetUndoState(ctx, userID, canvasID)
	if err != nil {
		return &Result{Success: false, Reason: err.Error()}
	}

	return &Result{Success: true, StateVersion: newVersion, Changes: changes, UndoState: undoState}
}

// ClearUndoHistory implements clear_undo_history{canvasId}: it deletes every
// operation row for the canvas and resets every user's in-memory stacks, a
// canvas-wide reset rather than a per-user one.
func (m *Manager) ClearUndoHistory(ctx context.Context, canvasID int64) error {
	if err := m.store.ClearUndoHistory(ctx, canvasID); err != nil {
		return err
	}
	m.history.ClearAllForCanvas(canvasID)
	return nil
}

// GetUndoState and UndoHistory pass through to the history manager so
// callers have one orchestration-layer API surface for undo/redo concerns.

func (m *Manager) GetUndoState(ctx context.Context, userID, canvasID int64) (history.UndoState, error) {
	return m.history.GetUndoState(ctx, userID, canvasID)
}

func (m *Manager) UndoHistory(ctx context.Context, userID, canvasID int64, limit int, showAllUsers bool) ([]*store.Operation, error) {
	return m.history.UndoHistory(ctx, userID, canvasID, limit, showAllUsers)
}

// detectConflicts reports, without blocking, every still-applied operation
// with a later sequence number than the candidate bundle that touches an
// overlapping node set, per §4.3's conflict rule.
func (m *Manager) detectConflicts(ctx context.Context, canvasID int64, candidateIDs []string) ([]string, error) {
	ops, err := m.store.ListOperationsForCanvas(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("list operations for conflict check: %w", err)
	}

	byID := make(map[string]*store.Operation, len(ops))
	for _, op := range ops {
		byID[op.ID] = op
	}

	var maxSeq int64
	touched := map[int64]bool{}
	for _, id := range candidateIDs {
		op, ok := byID[id]
		if !ok {
			continue
		}
		if op.SequenceNumber > maxSeq {
			maxSeq = op.SequenceNumber
		}
		for nodeID := range affectedNodeIDs(op.Params) {
			touched[nodeID] = true
		}
	}

	var conflicts []string
	for _, op := range ops {
		if op.SequenceNumber <= maxSeq || op.State != store.OperationApplied {
			continue
		}
		for nodeID := range affectedNodeIDs(op.Params) {
			if touched[nodeID] {
				conflicts = append(conflicts, op.ID)
				break
			}
		}
	}
	return conflicts, nil
}

// affectedNodeIDs extracts the node ids a recorded operation's params
// reference, recognizing the handful of id-bearing param keys used across
// the operation catalog.
func affectedNodeIDs(paramsJSON string) map[int64]bool {
	ids := map[int64]bool{}
	if paramsJSON == "" {
		return ids
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
		return ids
	}

	add := func(v interface{}) {
		switch n := v.(type) {
		case float64:
			ids[int64(n)] = true
		}
	}
	if v, ok := params["nodeId"]; ok {
		add(v)
	}
	if v, ok := params["groupId"]; ok {
		add(v)
	}
	if arr, ok := params["nodeIds"].([]interface{}); ok {
		for _, item := range arr {
			add(item)
		}
	}
	return ids
}

// decodeJSONObject unmarshals a possibly-empty JSON object string into a
// map, tolerating "" and "null" as "no data".
func decodeJSONObject(raw string) (map[string]interface{}, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// mergeChanges folds src into dst in place.
func mergeChanges(dst, src *canvas.ChangeSet) {
	if src == nil {
		return
	}
	dst.Added = append(dst.Added, src.Added...)
	dst.Updated = append(dst.Updated, src.Updated...)
	dst.Removed = append(dst.Removed, src.Removed...)
	dst.DeletedNodes = append(dst.DeletedNodes, src.DeletedNodes...)
}
