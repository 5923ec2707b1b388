// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rotoshake/canvasd/internal/store"
)

// Store is the slice of the persistence facade the canvas state manager
// needs: loading/saving the scene blob and appending to the operations log
// within the same transaction as the state_version bump.
type Store interface {
	GetCanvas(ctx context.Context, id int64) (*store.Canvas, error)
	UpdateCanvasData(ctx context.Context, id int64, canvasData string) error
	Transaction(ctx context.Context, fn func(*store.Tx) error) error
	InsertOperation(ctx context.Context, tx *store.Tx, op *store.Operation) (*store.Operation, error)
	BumpStateVersion(ctx context.Context, tx *store.Tx, canvasID int64) (int64, error)
}

// Manager is the canvas state manager: it validates and applies operations
// against per-canvas scene graphs, one at a time per canvas.
type Manager struct {
	store Store

	mu     sync.RWMutex
	locks  map[int64]*sync.Mutex
	states map[int64]*CanvasState
}

// NewManager builds a Manager backed by the given persistence facade.
func NewManager(s Store) *Manager {
	return &Manager{
		store:  s,
		locks:  make(map[int64]*sync.Mutex),
		states: make(map[int64]*CanvasState),
	}
}

func (m *Manager) lockFor(canvasID int64) *sync.Mutex {
	m.mu.RLock()
	l, ok := m.locks[canvasID]
	m.mu.RUnlock()
	if ok {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[canvasID]; ok {
		return l
	}
	l = &sync.Mutex{}
	m.locks[canvasID] = l
	return l
}

// loadState returns the cached CanvasState for canvasID, lazily loading it
// from persistence on first access. Callers must hold the canvas's lock.
func (m *Manager) loadState(ctx context.Context, canvasID int64) (*CanvasState, error) {
	m.mu.RLock()
	s, ok := m.states[canvasID]
	m.mu.RUnlock()
	if ok {
		return s, nil
	}

	row, err := m.store.GetCanvas(ctx, canvasID)
	if err != nil {
		return nil, fmt.Errorf("load canvas %d: %w", canvasID, err)
	}
	state, err := decodeCanvasBlob(row.CanvasData)
	if err != nil {
		return nil, fmt.Errorf("decode canvas %d data: %w", canvasID, err)
	}
	state.CanvasID = canvasID
	state.LastModified = row.LastModified.UnixMilli()

	m.mu.Lock()
	m.states[canvasID] = state
	m.mu.Unlock()

	return state, nil
}

// ExecuteOperation validates and applies op against canvasID, serialized
// per-canvas: the entire call runs to completion before the next operation
// on the same canvas begins.
func (m *Manager) ExecuteOperation(ctx context.Context, canvasID int64, op *Operation, userID int64) *Result {
	lock := m.lockFor(canvasID)
	lock.Lock()
	defer lock.Unlock()

	def, ok := registry[op.Type]
	if !ok {
		return &Result{Success: false, Error: fmt.Sprintf("unknown operation type %q", op.Type)}
	}
	if err := def.validate(op); err != nil {
		return &Result{Success: false, Error: err.Error()}
	}

	state, err := m.loadState(ctx, canvasID)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}
	}

	changes := def.apply(state, op)
	state.StateVersion++

	blob, err := encodeCanvasBlob(state)
	if err != nil {
		state.StateVersion--
		return &Result{Success: false, Error: fmt.Sprintf("encode canvas state: %v", err)}
	}

	paramsJSON, _ := json.Marshal(op.Params)
	undoDataJSON, _ := json.Marshal(op.UndoData)

	txErr := m.store.Transaction(ctx, func(tx *store.Tx) error {
		if _, err := m.store.InsertOperation(ctx, tx, &store.Operation{
			ID:            op.ID,
			Type:          op.Type,
			Params:        string(paramsJSON),
			UndoData:      string(undoDataJSON),
			UserID:        userID,
			CanvasID:      canvasID,
			TransactionID: op.TransactionID,
		}); err != nil {
			return err
		}
		if _, err := m.store.BumpStateVersion(ctx, tx, canvasID); err != nil {
			return err
		}
		return nil
	})
	if txErr != nil {
		state.StateVersion--
		return &Result{Success: false, Error: fmt.Sprintf("persist operation: %v", txErr)}
	}

	if err := m.store.UpdateCanvasData(ctx, canvasID, blob); err != nil {
		// Persistence failure is fatal for the operation: do not ack, do not
		// broadcast. The in-memory state has already advanced, but since we
		// never acknowledge the caller the client will reconcile via
		// request_full_sync rather than trust a version that never landed.
		return &Result{Success: false, Error: fmt.Sprintf("persist canvas data: %v", err)}
	}

	return &Result{Success: true, StateVersion: state.StateVersion, Changes: changes}
}

// CurrentState returns a snapshot of the cached state for canvasID, loading
// it from persistence if not yet resident. Used for request_full_sync.
func (m *Manager) CurrentState(ctx context.Context, canvasID int64) (*CanvasState, error) {
	lock := m.lockFor(canvasID)
	lock.Lock()
	defer lock.Unlock()
	return m.loadState(ctx, canvasID)
}

// WithLock runs fn while holding canvasID's lock, with the canvas state
// loaded, for use by the undo/redo orchestrator which needs to mutate state
// and record multiple operation rows within one logical step.
func (m *Manager) WithLock(ctx context.Context, canvasID int64, fn func(state *CanvasState) error) error {
	lock := m.lockFor(canvasID)
	lock.Lock()
	defer lock.Unlock()

	state, err := m.loadState(ctx, canvasID)
	if err != nil {
		return err
	}
	return fn(state)
}

// PersistState writes the current in-memory blob for canvasID to storage.
// Called by the undo orchestrator after mutating state directly.
func (m *Manager) PersistState(ctx context.Context, state *CanvasState) error {
	blob, err := encodeCanvasBlob(state)
	if err != nil {
		return fmt.Errorf("encode canvas state: %w", err)
	}
	return m.store.UpdateCanvasData(ctx, state.CanvasID, blob)
}
