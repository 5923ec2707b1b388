// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package undo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotoshake/canvasd/internal/canvas"
	"github.com/rotoshake/canvasd/internal/history"
	"github.com/rotoshake/canvasd/internal/store"
)

func newTestRig(t *testing.T) (*Manager, *canvas.Manager, *store.DB, int64, int64) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := NewManager(cm, hm, db)
	return um, cm, db, owner.ID, c.ID
}

// execAndRecord runs an operation through the canvas manager and records it
// in history, the way the collaboration manager's execute_operation handler
// does.
func execAndRecord(t *testing.T, cm *canvas.Manager, hm *history.Manager, canvasID, userID int64, op *canvas.Operation) *canvas.Result {
	t.Helper()
	res := cm.ExecuteOperation(context.Background(), canvasID, op, userID)
	require.True(t, res.Success, res.Error)
	require.NoError(t, hm.RecordOperation(context.Background(), userID, canvasID, op.ID, op.TransactionID))
	return res
}

func TestUndo_NodeMove_RestoresPreviousPosition(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := NewManager(cm, hm, db)

	createRes := execAndRecord(t, cm, hm, c.ID, owner.ID, &canvas.Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{"type": canvas.TypeText, "pos": []interface{}{10.0, 10.0}},
	})
	nodeID := createRes.Changes.Added[0].ID
	assert.Equal(t, int64(1), createRes.StateVersion)

	execAndRecord(t, cm, hm, c.ID, owner.ID, &canvas.Operation{
		ID: "op2", Type: "node_move",
		Params: map[string]interface{}{"nodeId": float64(nodeID), "position": []interface{}{50.0, 50.0}},
		UndoData: map[string]interface{}{
			"previousPositions": map[string]interface{}{fmt.Sprintf("%d", nodeID): []interface{}{10.0, 10.0}},
		},
	})

	undo := um.Undo(ctx, owner.ID, c.ID)
	require.True(t, undo.Success, undo.Reason)
	assert.Equal(t, int64(3), undo.StateVersion)
}

func TestUndo_NothingToUndo(t *testing.T) {
	um, _, _, userID, canvasID := newTestRig(t)
	res := um.Undo(context.Background(), userID, canvasID)
	assert.False(t, res.Success)
	assert.Equal(t, "Nothing to undo", res.Reason)
}

func TestUndoThenRedo_NetVersionIncrementsByTwo(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := NewManager(cm, hm, db)

	createRes := execAndRecord(t, cm, hm, c.ID, owner.ID, &canvas.Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{"type": canvas.TypeText, "pos": []interface{}{10.0, 10.0}},
	})
	require.Equal(t, int64(1), createRes.StateVersion)

	undo := um.Undo(ctx, owner.ID, c.ID)
	require.True(t, undo.Success, undo.Reason)
	assert.Equal(t, int64(2), undo.StateVersion)

	redo := um.Redo(ctx, owner.ID, c.ID)
	require.True(t, redo.Success, redo.Reason)
	assert.Equal(t, int64(3), redo.StateVersion)

	state, err := cm.CurrentState(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, state.Nodes, 1)
}

func TestUndo_TransactionBundle_SingleVersionBump(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := NewManager(cm, hm, db)

	execAndRecord(t, cm, hm, c.ID, owner.ID, &canvas.Operation{
		ID: "op1", Type: "node_create", TransactionID: "tx1",
		Params: map[string]interface{}{"type": canvas.TypeText, "pos": []interface{}{0.0, 0.0}},
	})
	execAndRecord(t, cm, hm, c.ID, owner.ID, &canvas.Operation{
		ID: "op2", Type: "node_create", TransactionID: "tx1",
		Params: map[string]interface{}{"type": canvas.TypeText, "pos": []interface{}{5.0, 5.0}},
	})

	undo := um.Undo(ctx, owner.ID, c.ID)
	require.True(t, undo.Success, undo.Reason)
	assert.Equal(t, int64(3), undo.StateVersion) // 2 creates + 1 undo step

	state, err := cm.CurrentState(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, state.Nodes)
}

func TestClearUndoHistory_ResetsStackAndDeletesRows(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := NewManager(cm, hm, db)

	execAndRecord(t, cm, hm, c.ID, owner.ID, &canvas.Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{"type": canvas.TypeText, "pos": []interface{}{0.0, 0.0}},
	})

	require.NoError(t, um.ClearUndoHistory(ctx, c.ID))

	st, err := um.GetUndoState(ctx, owner.ID, c.ID)
	require.NoError(t, err)
	assert.False(t, st.CanUndo)

	ops, err := db.ListOperationsForCanvas(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestUndo_ReportsConflictButProceeds(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	u1, err := db.CreateUser(ctx, "u1", "U1")
	require.NoError(t, err)
	u2, err := db.CreateUser(ctx, "u2", "U2")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", u1.ID)
	require.NoError(t, err)

	cm := canvas.NewManager(db)
	hm := history.NewManager(db)
	um := NewManager(cm, hm, db)

	createRes := execAndRecord(t, cm, hm, c.ID, u1.ID, &canvas.Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{"type": canvas.TypeText, "pos": []interface{}{0.0, 0.0}},
	})
	nodeID := createRes.Changes.Added[0].ID

	// u1 moves the node...
	execAndRecord(t, cm, hm, c.ID, u1.ID, &canvas.Operation{
		ID: "op2", Type: "node_move",
		Params: map[string]interface{}{"nodeId": float64(nodeID), "position": []interface{}{1.0, 1.0}},
	})
	// ...then u2 moves the same node afterward.
	execAndRecord(t, cm, hm, c.ID, u2.ID, &canvas.Operation{
		ID: "op3", Type: "node_move",
		Params: map[string]interface{}{"nodeId": float64(nodeID), "position": []interface{}{2.0, 2.0}},
	})

	// u1 undoes op2; op3 (a later, still-applied, node-overlapping op by
	// another user) should be reported as a conflict, but the undo proceeds.
	undo := um.Undo(ctx, u1.ID, c.ID)
	require.True(t, undo.Success, undo.Reason)
	assert.Equal(t, []string{"op3"}, undo.ConflictingOperationIDs)
}
