// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotoshake/canvasd/internal/store"
)

func newTestManager(t *testing.T) (*Manager, *store.DB, int64) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "canvasd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	owner, err := db.CreateUser(ctx, "owner", "Owner")
	require.NoError(t, err)
	c, err := db.CreateCanvas(ctx, "Canvas", "", owner.ID)
	require.NoError(t, err)

	return NewManager(db), db, c.ID
}

func TestExecuteOperation_NodeCreate_AssignsIDAndBumpsVersion(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	res := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID:   "op1",
		Type: "node_create",
		Params: map[string]interface{}{
			"type": TypeText,
			"pos":  []interface{}{10.0, 10.0},
		},
	}, 1)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, int64(1), res.StateVersion)
	require.Len(t, res.Changes.Added, 1)
	assert.NotZero(t, res.Changes.Added[0].ID)
}

func TestExecuteOperation_StateVersion_Monotonic(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	var lastVersion int64
	for i := 0; i < 3; i++ {
		res := mgr.ExecuteOperation(ctx, canvasID, &Operation{
			ID:   "op" + string(rune('a'+i)),
			Type: "node_create",
			Params: map[string]interface{}{
				"type": TypeText,
				"pos":  []interface{}{0.0, 0.0},
			},
		}, 1)
		require.True(t, res.Success)
		assert.Greater(t, res.StateVersion, lastVersion)
		lastVersion = res.StateVersion
	}
}

func TestExecuteOperation_UnknownType_Rejected(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	res := mgr.ExecuteOperation(context.Background(), canvasID, &Operation{ID: "op1", Type: "not_a_real_op"}, 1)
	assert.False(t, res.Success)
}

func TestExecuteOperation_NodeMove_MissingNode_SucceedsEmpty(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	res := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID:   "op1",
		Type: "node_move",
		Params: map[string]interface{}{
			"nodeId":   999999.0,
			"position": []interface{}{5.0, 5.0},
		},
	}, 1)

	require.True(t, res.Success)
	assert.Empty(t, res.Changes.Updated)
}

func TestExecuteOperation_NodeDelete_RequiresNonEmptyIDs(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	res := mgr.ExecuteOperation(context.Background(), canvasID, &Operation{
		ID:     "op1",
		Type:   "node_delete",
		Params: map[string]interface{}{"nodeIds": []interface{}{}},
	}, 1)
	assert.False(t, res.Success)
}

func TestExecuteOperation_NodeResize_UpdatesAspectRatio(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	create := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID:   "op1",
		Type: "node_create",
		Params: map[string]interface{}{
			"type": TypeImage,
			"pos":  []interface{}{0.0, 0.0},
			"size": []interface{}{100.0, 50.0},
		},
	}, 1)
	require.True(t, create.Success)
	nodeID := create.Changes.Added[0].ID

	res := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID:   "op2",
		Type: "node_resize",
		Params: map[string]interface{}{
			"nodeIds": []interface{}{float64(nodeID)},
			"sizes":   []interface{}{[]interface{}{200.0, 40.0}},
		},
	}, 1)
	require.True(t, res.Success)
	require.Len(t, res.Changes.Updated, 1)
	assert.Equal(t, 5.0, res.Changes.Updated[0].AspectRatio)
}

func TestExecuteOperation_NodeDelete_PrunesGroupChildNodes(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	child := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{"type": TypeText, "pos": []interface{}{0.0, 0.0}},
	}, 1)
	childID := child.Changes.Added[0].ID

	group := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op2", Type: "group_create",
		Params: map[string]interface{}{
			"pos":          []interface{}{0.0, 0.0},
			"childNodeIds": []interface{}{float64(childID)},
		},
	}, 1)
	groupID := group.Changes.Added[0].ID

	del := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op3", Type: "node_delete",
		Params: map[string]interface{}{"nodeIds": []interface{}{float64(childID)}},
	}, 1)
	require.True(t, del.Success)
	require.Len(t, del.Changes.Updated, 1)
	assert.Equal(t, groupID, del.Changes.Updated[0].ID)
	assert.Empty(t, del.Changes.Updated[0].childNodes())
}

func TestExecuteOperation_GroupToggleCollapsed_SelfInverse(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	group := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op1", Type: "group_create",
		Params: map[string]interface{}{
			"pos":  []interface{}{0.0, 0.0},
			"size": []interface{}{300.0, 300.0},
		},
	}, 1)
	groupID := group.Changes.Added[0].ID

	collapse := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op2", Type: "group_toggle_collapsed",
		Params: map[string]interface{}{"groupId": float64(groupID)},
	}, 1)
	require.True(t, collapse.Success)
	assert.Equal(t, collapsedSize, collapse.Changes.Updated[0].Size)

	expand := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op3", Type: "group_toggle_collapsed",
		Params: map[string]interface{}{"groupId": float64(groupID)},
	}, 1)
	require.True(t, expand.Success)
	assert.Equal(t, [2]float64{300, 300}, expand.Changes.Updated[0].Size)
}

func TestExecuteOperation_ImageUploadComplete_Idempotent(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{
			"type":       TypeImage,
			"pos":        []interface{}{0.0, 0.0},
			"properties": map[string]interface{}{"hash": "abc123"},
		},
	}, 1)

	first := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op2", Type: "image_upload_complete",
		Params: map[string]interface{}{"hash": "abc123", "serverUrl": "/uploads/x.png"},
	}, 1)
	require.True(t, first.Success)
	assert.Len(t, first.Changes.Updated, 1)

	second := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op3", Type: "image_upload_complete",
		Params: map[string]interface{}{"hash": "abc123", "serverUrl": "/uploads/x.png"},
	}, 1)
	require.True(t, second.Success)
	assert.Empty(t, second.Changes.Updated)
}

func TestExecuteOperation_NodeCreate_StripsDataURL(t *testing.T) {
	mgr, _, canvasID := newTestManager(t)
	ctx := context.Background()

	res := mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{
			"type":       TypeImage,
			"pos":        []interface{}{0.0, 0.0},
			"properties": map[string]interface{}{"src": "data:image/png;base64,abcd"},
		},
	}, 1)

	require.True(t, res.Success)
	_, hasSrc := res.Changes.Added[0].Properties["src"]
	assert.False(t, hasSrc)
}

func TestCurrentState_PersistsAcrossReload(t *testing.T) {
	mgr, db, canvasID := newTestManager(t)
	ctx := context.Background()

	mgr.ExecuteOperation(ctx, canvasID, &Operation{
		ID: "op1", Type: "node_create",
		Params: map[string]interface{}{"type": TypeText, "pos": []interface{}{1.0, 2.0}},
	}, 1)

	// Build a fresh manager over the same store to force a reload from disk.
	mgr2 := NewManager(db)
	state, err := mgr2.CurrentState(ctx, canvasID)
	require.NoError(t, err)
	require.Len(t, state.Nodes, 1)
	assert.Equal(t, [2]float64{1, 2}, state.Nodes[0].Pos)
	assert.Equal(t, int64(1), state.StateVersion)
}
