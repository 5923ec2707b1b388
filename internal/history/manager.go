// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rotoshake/canvasd/internal/store"
)

// Store is the slice of the persistence facade the operation history needs.
type Store interface {
	ListOperationsForUser(ctx context.Context, canvasID, userID int64, state store.OperationState) ([]*store.Operation, error)
	ListOperationsForCanvas(ctx context.Context, canvasID int64) ([]*store.Operation, error)
	GetOperation(ctx context.Context, id string) (*store.Operation, error)
}

// Manager tracks per-(user, canvas) undo/redo stacks on top of the
// operations table, which remains the durable record: on restart, stacks
// are rebuilt from operations.state and transaction_id rather than from any
// separately persisted stack structure.
type Manager struct {
	store Store

	mu    sync.Mutex
	undo  map[stackKey][]StackEntry
	redo  map[stackKey][]StackEntry
	ready map[stackKey]bool
}

// NewManager builds a history Manager backed by the given persistence facade.
func NewManager(s Store) *Manager {
	return &Manager{
		store: s,
		undo:  make(map[stackKey][]StackEntry),
		redo:  make(map[stackKey][]StackEntry),
		ready: make(map[stackKey]bool),
	}
}

// ensureLoaded lazily reconstructs a user's stacks from the operations table
// the first time they're touched in this process. Callers must hold m.mu.
func (m *Manager) ensureLoaded(ctx context.Context, key stackKey) error {
	if m.ready[key] {
		return nil
	}

	applied, err := m.store.ListOperationsForUser(ctx, key.CanvasID, key.UserID, store.OperationApplied)
	if err != nil {
		return fmt.Errorf("load applied operations: %w", err)
	}
	undone, err := m.store.ListOperationsForUser(ctx, key.CanvasID, key.UserID, store.OperationUndone)
	if err != nil {
		return fmt.Errorf("load undone operations: %w", err)
	}

	// Undo stack: applied ops in the order they were originally executed,
	// grouped into transaction entries wherever consecutive rows share a
	// non-empty transaction_id.
	m.undo[key] = groupBySequence(applied)

	// Redo stack: undone ops ordered by when the undo happened (oldest
	// first so the most recently undone item sits on top), grouped the
	// same way. This reconstructs stack order from operations.state plus
	// transaction_id, per the no-separate-persisted-stack design.
	sort.SliceStable(undone, func(i, j int) bool {
		ti, tj := undone[i].UndoneAt, undone[j].UndoneAt
		if ti == nil || tj == nil {
			return undone[i].SequenceNumber < undone[j].SequenceNumber
		}
		return ti.Before(*tj)
	})
	m.redo[key] = groupBySequence(undone)

	m.ready[key] = true
	return nil
}

// groupBySequence folds a sequence-ordered operation list into stack
// entries, merging consecutive rows that share a transaction id.
func groupBySequence(ops []*store.Operation) []StackEntry {
	var entries []StackEntry
	for _, op := range ops {
		if op.TransactionID != "" && len(entries) > 0 {
			last := &entries[len(entries)-1]
			if last.Type == EntryTransaction && last.TransactionID == op.TransactionID {
				last.OperationIDs = append(last.OperationIDs, op.ID)
				continue
			}
		}
		if op.TransactionID != "" {
			entries = append(entries, StackEntry{
				Type: EntryTransaction, TransactionID: op.TransactionID, OperationIDs: []string{op.ID},
			})
		} else {
			entries = append(entries, StackEntry{Type: EntrySingle, OperationID: op.ID})
		}
	}
	return entries
}

// RecordOperation appends a freshly-applied operation to the acting user's
// undo stack and clears their redo stack, mirroring the rule that any new
// non-undo operation invalidates pending redos.
func (m *Manager) RecordOperation(ctx context.Context, userID, canvasID int64, opID, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	if err := m.ensureLoaded(ctx, key); err != nil {
		return err
	}

	entries := m.undo[key]
	if transactionID != "" && len(entries) > 0 {
		last := &entries[len(entries)-1]
		if last.Type == EntryTransaction && last.TransactionID == transactionID {
			last.OperationIDs = append(last.OperationIDs, opID)
			m.undo[key] = entries
			m.redo[key] = nil
			return nil
		}
	}

	if transactionID != "" {
		entries = append(entries, StackEntry{Type: EntryTransaction, TransactionID: transactionID, OperationIDs: []string{opID}})
	} else {
		entries = append(entries, StackEntry{Type: EntrySingle, OperationID: opID})
	}
	m.undo[key] = entries
	m.redo[key] = nil
	return nil
}

// PeekUndo returns the top of the user's undo stack without popping it.
func (m *Manager) PeekUndo(ctx context.Context, userID, canvasID int64) (StackEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	if err := m.ensureLoaded(ctx, key); err != nil {
		return StackEntry{}, false, err
	}
	entries := m.undo[key]
	if len(entries) == 0 {
		return StackEntry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// PeekRedo returns the top of the user's redo stack without popping it.
func (m *Manager) PeekRedo(ctx context.Context, userID, canvasID int64) (StackEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	if err := m.ensureLoaded(ctx, key); err != nil {
		return StackEntry{}, false, err
	}
	entries := m.redo[key]
	if len(entries) == 0 {
		return StackEntry{}, false, nil
	}
	return entries[len(entries)-1], true, nil
}

// PopUndoToRedo moves the top undo entry onto the redo stack, returning it.
func (m *Manager) PopUndoToRedo(ctx context.Context, userID, canvasID int64) (StackEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	if err := m.ensureLoaded(ctx, key); err != nil {
		return StackEntry{}, false, err
	}
	entries := m.undo[key]
	if len(entries) == 0 {
		return StackEntry{}, false, nil
	}
	entry := entries[len(entries)-1]
	m.undo[key] = entries[:len(entries)-1]
	m.redo[key] = append(m.redo[key], entry)
	return entry, true, nil
}

// PopRedoToUndo moves the top redo entry back onto the undo stack.
func (m *Manager) PopRedoToUndo(ctx context.Context, userID, canvasID int64) (StackEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	if err := m.ensureLoaded(ctx, key); err != nil {
		return StackEntry{}, false, err
	}
	entries := m.redo[key]
	if len(entries) == 0 {
		return StackEntry{}, false, nil
	}
	entry := entries[len(entries)-1]
	m.redo[key] = entries[:len(entries)-1]
	m.undo[key] = append(m.undo[key], entry)
	return entry, true, nil
}

// OperationIDs is a convenience wrapper exposing a StackEntry's covered
// operation ids in original-apply order.
func OperationIDs(e StackEntry) []string {
	return e.ids()
}

// UndoState summarizes a user's stacks for get_undo_state / get_undo_history.
type UndoState struct {
	CanUndo   bool
	UndoCount int
	CanRedo   bool
	RedoCount int
	NextUndo  *StackEntry
	NextRedo  *StackEntry
}

// GetUndoState reports stack sizes and the next entry on each, per §4.3's
// getUserUndoState query.
func (m *Manager) GetUndoState(ctx context.Context, userID, canvasID int64) (UndoState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	if err := m.ensureLoaded(ctx, key); err != nil {
		return UndoState{}, err
	}

	undo := m.undo[key]
	redo := m.redo[key]
	st := UndoState{
		CanUndo:   len(undo) > 0,
		UndoCount: len(undo),
		CanRedo:   len(redo) > 0,
		RedoCount: len(redo),
	}
	if len(undo) > 0 {
		e := undo[len(undo)-1]
		st.NextUndo = &e
	}
	if len(redo) > 0 {
		e := redo[len(redo)-1]
		st.NextRedo = &e
	}
	return st, nil
}

// ClearHistory wipes both of a user's in-memory stacks on a canvas. The
// caller is responsible for also deleting the underlying operation rows
// (store.ClearUndoHistory) so a later reload doesn't resurrect them.
func (m *Manager) ClearHistory(userID, canvasID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := stackKey{UserID: userID, CanvasID: canvasID}
	m.undo[key] = nil
	m.redo[key] = nil
	m.ready[key] = true
}

// ClearAllForCanvas wipes every user's in-memory stacks for canvasID. The
// caller is responsible for also deleting the underlying operation rows
// (store.ClearUndoHistory) for clear_undo_history{canvasId}, which resets
// the whole canvas rather than one user's stack.
func (m *Manager) ClearAllForCanvas(canvasID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.ready {
		if key.CanvasID == canvasID {
			delete(m.ready, key)
			delete(m.undo, key)
			delete(m.redo, key)
		}
	}
}

// UndoHistory returns up to limit entries (most recent first) for
// get_undo_history, with the raw operation rows resolved for display.
// showAllUsers ignores the userID filter and returns every user's operations.
func (m *Manager) UndoHistory(ctx context.Context, userID, canvasID int64, limit int, showAllUsers bool) ([]*store.Operation, error) {
	ops, err := m.store.ListOperationsForCanvas(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("list operations for history: %w", err)
	}

	var filtered []*store.Operation
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if !showAllUsers && op.UserID != userID {
			continue
		}
		filtered = append(filtered, op)
		if limit > 0 && len(filtered) >= limit {
			break
		}
	}
	return filtered, nil
}
