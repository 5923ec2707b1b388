// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textNode(id int64, x, y float64) *Node {
	return &Node{ID: id, Type: TypeText, Pos: [2]float64{x, y}}
}

func TestApplyNodeDuplicate_NodeIDs_DropsOperationID(t *testing.T) {
	state := &CanvasState{Nodes: []*Node{
		{ID: 1, Type: TypeText, Pos: [2]float64{0, 0}, Properties: map[string]interface{}{"_operationId": "abc"}},
	}}
	op := &Operation{Params: map[string]interface{}{"nodeIds": []interface{}{1.0}}}

	changes := applyNodeDuplicate(state, op)
	require.Len(t, changes.Added, 1)
	_, has := changes.Added[0].Properties["_operationId"]
	assert.False(t, has)
	assert.Equal(t, [2]float64{20, 20}, changes.Added[0].Pos)
}

func TestApplyNodeDuplicate_NodeData_PreservesOperationID(t *testing.T) {
	state := &CanvasState{}
	op := &Operation{Params: map[string]interface{}{
		"nodeData": []interface{}{
			map[string]interface{}{
				"type":       TypeText,
				"pos":        []interface{}{0.0, 0.0},
				"properties": map[string]interface{}{"_operationId": "abc"},
			},
		},
	}}

	changes := applyNodeDuplicate(state, op)
	require.Len(t, changes.Added, 1)
	assert.Equal(t, "abc", changes.Added[0].Properties["_operationId"])
	assert.Equal(t, [2]float64{0, 0}, changes.Added[0].Pos)
}

func TestApplyNodePaste_CentersOnTargetAndRewiresGroup(t *testing.T) {
	state := &CanvasState{}
	op := &Operation{Params: map[string]interface{}{
		"targetPosition": []interface{}{100.0, 100.0},
		"nodeData": []interface{}{
			map[string]interface{}{
				"type": TypeGroup, "pos": []interface{}{0.0, 0.0}, "size": []interface{}{20.0, 20.0},
				"properties": map[string]interface{}{"_pasteChildIndices": []interface{}{1.0}},
			},
			map[string]interface{}{
				"type": TypeText, "pos": []interface{}{0.0, 0.0}, "size": []interface{}{10.0, 10.0},
			},
		},
	}}

	changes := applyNodePaste(state, op)
	require.Len(t, changes.Added, 2)
	group := changes.Added[0]
	child := changes.Added[1]
	require.Equal(t, TypeGroup, group.Type)
	assert.Equal(t, []int64{child.ID}, group.childNodes())
	assert.NotEqual(t, child.ID, group.ID)
}

func TestApplyNodeResize_PreservesCenterWhenRotated(t *testing.T) {
	state := &CanvasState{Nodes: []*Node{
		{ID: 1, Type: TypeImage, Pos: [2]float64{0, 0}, Size: [2]float64{100, 100}, Rotation: 1.0},
	}}
	op := &Operation{Params: map[string]interface{}{
		"nodeIds": []interface{}{1.0},
		"sizes":   []interface{}{[]interface{}{50.0, 50.0}},
	}}

	changes := applyNodeResize(state, op)
	require.Len(t, changes.Updated, 1)
	n := changes.Updated[0]
	// old center was [50,50]; new size [50,50] means new pos should be [25,25]
	assert.Equal(t, [2]float64{25, 25}, n.Pos)
	assert.Equal(t, 1.0, n.AspectRatio)
}

func TestApplyNodeDelete_PrunesNestedGroupReference(t *testing.T) {
	state := &CanvasState{Nodes: []*Node{
		textNode(1, 0, 0),
		{ID: 2, Type: TypeGroup, Properties: map[string]interface{}{"childNodes": []int64{1}}},
	}}
	op := &Operation{Params: map[string]interface{}{"nodeIds": []interface{}{1.0}}}

	changes := applyNodeDelete(state, op)
	require.Len(t, changes.DeletedNodes, 1)
	require.Len(t, changes.Updated, 1)
	assert.Empty(t, changes.Updated[0].childNodes())
}

func TestApplyGroupMove_TranslatesChildren(t *testing.T) {
	state := &CanvasState{Nodes: []*Node{
		textNode(1, 10, 10),
		{ID: 2, Type: TypeGroup, Pos: [2]float64{0, 0}, Properties: map[string]interface{}{"childNodes": []int64{1}}},
	}}
	op := &Operation{Params: map[string]interface{}{
		"groupId": 2.0,
		"newPos":  []interface{}{5.0, 5.0},
	}}

	changes := applyGroupMove(state, op)
	require.Len(t, changes.Updated, 2)
	child := state.findNode(1)
	assert.Equal(t, [2]float64{15, 15}, child.Pos)
}

func TestApplyVideoToggle_OnlyAffectsVideoNodes(t *testing.T) {
	state := &CanvasState{Nodes: []*Node{
		{ID: 1, Type: TypeText},
	}}
	op := &Operation{Params: map[string]interface{}{"nodeId": 1.0}}

	changes := applyVideoToggle(state, op)
	assert.Empty(t, changes.Updated)
}

func TestApplyNodePropertyUpdate_DirectAttrVsProperties(t *testing.T) {
	state := &CanvasState{Nodes: []*Node{{ID: 1, Type: TypeText}}}

	op := &Operation{Params: map[string]interface{}{"nodeId": 1.0, "property": "title", "value": "hello"}}
	changes := applyNodePropertyUpdate(state, op)
	require.Len(t, changes.Updated, 1)
	assert.Equal(t, "hello", changes.Updated[0].Title)

	op2 := &Operation{Params: map[string]interface{}{"nodeId": 1.0, "property": "customThing", "value": "x"}}
	applyNodePropertyUpdate(state, op2)
	assert.Equal(t, "x", state.Nodes[0].Properties["customThing"])
}

func TestValidateNodeMove_RequiresMatchingLengths(t *testing.T) {
	err := validateNodeMove(&Operation{Params: map[string]interface{}{
		"nodeIds":   []interface{}{1.0, 2.0},
		"positions": []interface{}{[]interface{}{0.0, 0.0}},
	}})
	assert.Error(t, err)
}

func TestMintNodeID_CollidesSameMillisecondIncrement(t *testing.T) {
	m := &idMinter{}
	first := m.mint()
	m.lastMs = first / 1000 // force a same-millisecond collision on next call
	second := m.mint()
	assert.NotEqual(t, first, second)
}
