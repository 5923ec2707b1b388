// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

// --- group_create ---

func validateGroupCreate(op *Operation) error {
	if _, ok := paramVec2(op.Params, "pos"); !ok {
		return &ValidationError{Message: "group_create requires params.pos"}
	}
	return nil
}

func applyGroupCreate(s *CanvasState, op *Operation) *ChangeSet {
	pos, _ := paramVec2(op.Params, "pos")
	size := [2]float64{200, 200}
	if sz, ok := paramVec2(op.Params, "size"); ok {
		size = sz
	}

	n := &Node{Type: TypeGroup, Pos: pos, Size: size}
	if id, ok := paramFloat(op.Params, "id"); ok {
		n.ID = int64(id)
	} else {
		n.ID = mintNodeID()
	}
	if title, ok := paramString(op.Params, "title"); ok {
		n.Title = title
	}
	if style, ok := paramMap(op.Params, "style"); ok {
		n.Style = style
	}

	var children []int64
	if raw, ok := paramSlice(op.Params, "childNodeIds"); ok {
		for _, item := range raw {
			if id, ok := toInt64(item); ok {
				children = append(children, id)
			}
		}
	}
	if children == nil {
		children = []int64{}
	}
	n.setChildNodes(children)

	s.Nodes = append(s.Nodes, n)
	return &ChangeSet{Added: []*Node{n}}
}

// --- group_add_node ---

func validateGroupAddNode(op *Operation) error {
	if _, ok := paramFloat(op.Params, "groupId"); !ok {
		return &ValidationError{Message: "group_add_node requires params.groupId"}
	}
	if _, ok := paramFloat(op.Params, "nodeId"); !ok {
		return &ValidationError{Message: "group_add_node requires params.nodeId"}
	}
	return nil
}

func applyGroupAddNode(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	groupID, _ := paramFloat(op.Params, "groupId")
	nodeID, _ := paramFloat(op.Params, "nodeId")

	group := s.findNode(int64(groupID))
	if group == nil || group.Type != TypeGroup {
		return changes
	}
	if s.findNode(int64(nodeID)) == nil {
		return changes
	}

	children := group.childNodes()
	for _, id := range children {
		if id == int64(nodeID) {
			return changes // already a member
		}
	}
	group.setChildNodes(append(children, int64(nodeID)))
	changes.Updated = append(changes.Updated, group)
	return changes
}

// --- group_remove_node ---

func validateGroupRemoveNode(op *Operation) error {
	if _, ok := paramFloat(op.Params, "groupId"); !ok {
		return &ValidationError{Message: "group_remove_node requires params.groupId"}
	}
	if _, ok := paramFloat(op.Params, "nodeId"); !ok {
		return &ValidationError{Message: "group_remove_node requires params.nodeId"}
	}
	return nil
}

func applyGroupRemoveNode(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	groupID, _ := paramFloat(op.Params, "groupId")
	nodeID, _ := paramFloat(op.Params, "nodeId")

	group := s.findNode(int64(groupID))
	if group == nil || group.Type != TypeGroup {
		return changes
	}

	children := group.childNodes()
	pruned := children[:0:0]
	changed := false
	for _, id := range children {
		if id == int64(nodeID) {
			changed = true
			continue
		}
		pruned = append(pruned, id)
	}
	if changed {
		group.setChildNodes(pruned)
		changes.Updated = append(changes.Updated, group)
	}
	return changes
}

// --- group_move ---

func validateGroupMove(op *Operation) error {
	if _, ok := paramFloat(op.Params, "groupId"); !ok {
		return &ValidationError{Message: "group_move requires params.groupId"}
	}
	if _, ok := paramVec2(op.Params, "newPos"); !ok {
		return &ValidationError{Message: "group_move requires params.newPos"}
	}
	return nil
}

// applyGroupMove translates the group and every child by newPos - oldPos.
func applyGroupMove(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	groupID, _ := paramFloat(op.Params, "groupId")
	newPos, _ := paramVec2(op.Params, "newPos")

	group := s.findNode(int64(groupID))
	if group == nil || group.Type != TypeGroup {
		return changes
	}

	delta := [2]float64{newPos[0] - group.Pos[0], newPos[1] - group.Pos[1]}
	group.Pos = newPos
	changes.Updated = append(changes.Updated, group)

	for _, childID := range group.childNodes() {
		child := s.findNode(childID)
		if child == nil {
			continue
		}
		child.Pos = [2]float64{child.Pos[0] + delta[0], child.Pos[1] + delta[1]}
		changes.Updated = append(changes.Updated, child)
	}
	return changes
}

// --- group_resize ---

func validateGroupResize(op *Operation) error {
	if _, ok := paramFloat(op.Params, "groupId"); !ok {
		return &ValidationError{Message: "group_resize requires params.groupId"}
	}
	if _, ok := paramVec2(op.Params, "size"); !ok {
		return &ValidationError{Message: "group_resize requires params.size"}
	}
	return nil
}

func applyGroupResize(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	groupID, _ := paramFloat(op.Params, "groupId")
	size, _ := paramVec2(op.Params, "size")

	group := s.findNode(int64(groupID))
	if group == nil || group.Type != TypeGroup {
		return changes
	}

	group.Size = size
	if pos, ok := paramVec2(op.Params, "pos"); ok {
		group.Pos = pos
	}
	changes.Updated = append(changes.Updated, group)
	return changes
}

// --- group_toggle_collapsed ---

func validateGroupToggleCollapsed(op *Operation) error {
	if _, ok := paramFloat(op.Params, "groupId"); !ok {
		return &ValidationError{Message: "group_toggle_collapsed requires params.groupId"}
	}
	return nil
}

// collapsedSize is the fixed size a group shrinks to when collapsed.
var collapsedSize = [2]float64{200, 40}

func applyGroupToggleCollapsed(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	groupID, _ := paramFloat(op.Params, "groupId")

	group := s.findNode(int64(groupID))
	if group == nil || group.Type != TypeGroup {
		return changes
	}

	if group.IsCollapsed {
		group.IsCollapsed = false
		if group.ExpandedSize != ([2]float64{}) {
			group.Size = group.ExpandedSize
		}
	} else {
		group.ExpandedSize = group.Size
		group.IsCollapsed = true
		group.Size = collapsedSize
	}
	changes.Updated = append(changes.Updated, group)
	return changes
}

// --- group_update_style ---

func validateGroupUpdateStyle(op *Operation) error {
	if _, ok := paramFloat(op.Params, "groupId"); !ok {
		return &ValidationError{Message: "group_update_style requires params.groupId"}
	}
	if _, ok := paramMap(op.Params, "style"); !ok {
		return &ValidationError{Message: "group_update_style requires params.style"}
	}
	return nil
}

func applyGroupUpdateStyle(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	groupID, _ := paramFloat(op.Params, "groupId")
	style, _ := paramMap(op.Params, "style")

	group := s.findNode(int64(groupID))
	if group == nil || group.Type != TypeGroup {
		return changes
	}

	if group.Style == nil {
		group.Style = map[string]interface{}{}
	}
	for k, v := range style {
		group.Style[k] = v
	}
	changes.Updated = append(changes.Updated, group)
	return changes
}
