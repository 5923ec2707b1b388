// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

// ApplyUndoData inverts a previously-applied operation using its
// client-supplied UndoData snapshot, per §4.3's key-driven schema: any
// subset of the documented keys may be present, and each is applied
// independently of the operation's Type. It returns the resulting change
// set and whether any key was recognized; callers should treat a false
// "applied" as a skip-with-warning, not an error, per spec's undo-is-never-
// fatal rule.
func ApplyUndoData(state *CanvasState, undoData map[string]interface{}) (*ChangeSet, bool) {
	if len(undoData) == 0 {
		return &ChangeSet{}, false
	}

	changes := &ChangeSet{}
	applied := false

	if raw, ok := paramSlice(undoData, "deletedNodes"); ok {
		for _, item := range raw {
			data, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			n := nodeFromSnapshot(data)
			if n.ID == 0 {
				continue
			}
			state.Nodes = append(state.Nodes, n)
			changes.Added = append(changes.Added, n)
		}
		applied = true
	}

	if raw, ok := paramSlice(undoData, "createdNodeIds"); ok {
		ids := make(map[int64]bool, len(raw))
		for _, item := range raw {
			if id, ok := toInt64(item); ok {
				ids[id] = true
				changes.Removed = append(changes.Removed, id)
			}
		}
		changes.DeletedNodes = append(changes.DeletedNodes, state.removeNodes(ids)...)
		applied = true
	}

	if raw, ok := undoData["nodeId"]; ok {
		if id, ok := toInt64(raw); ok {
			removed := state.removeNodes(map[int64]bool{id: true})
			changes.Removed = append(changes.Removed, id)
			changes.DeletedNodes = append(changes.DeletedNodes, removed...)
			applied = true
		}
	}

	if m, err := float2Map(undoData, "previousPositions"); err == nil {
		for id, pos := range m {
			if n := state.findNode(id); n != nil {
				n.Pos = pos
				changes.Updated = append(changes.Updated, n)
			}
		}
		applied = true
	}

	if m, err := float2Map(undoData, "previousSizes"); err == nil {
		for id, size := range m {
			if n := state.findNode(id); n != nil {
				n.Size = size
				changes.Updated = append(changes.Updated, n)
			}
		}
		applied = true
	}

	if m, ok := idFloatMap(undoData, "previousRotations"); ok {
		for id, rot := range m {
			if n := state.findNode(id); n != nil {
				n.Rotation = rot
				changes.Updated = append(changes.Updated, n)
			}
		}
		applied = true
	}

	if m, ok := idFloatMap(undoData, "previousAspectRatios"); ok {
		for id, ar := range m {
			if n := state.findNode(id); n != nil {
				n.AspectRatio = ar
				changes.Updated = append(changes.Updated, n)
			}
		}
		applied = true
	}

	if m, ok := idObjectMap(undoData, "previousProperties"); ok {
		for id, props := range m {
			n := state.findNode(id)
			if n == nil {
				continue
			}
			for k, v := range props {
				setNodeAttr(n, k, v)
			}
			changes.Updated = append(changes.Updated, n)
		}
		applied = true
	}

	if m, ok := idObjectMap(undoData, "previousState"); ok {
		for id, partial := range m {
			n := state.findNode(id)
			if n == nil {
				continue
			}
			for k, v := range partial {
				setNodeAttr(n, k, v)
			}
			changes.Updated = append(changes.Updated, n)
		}
		applied = true
	}

	if raw, ok := paramSlice(undoData, "nodes"); ok {
		for _, item := range raw {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			id, ok := toInt64(entry["id"])
			if !ok {
				continue
			}
			pos, ok := paramVec2(entry, "oldPosition")
			if !ok {
				continue
			}
			if n := state.findNode(id); n != nil {
				n.Pos = pos
				changes.Updated = append(changes.Updated, n)
			}
		}
		applied = true
	}

	return changes, applied
}

// nodeFromSnapshot builds a full Node from a client-supplied snapshot
// (undoData.deletedNodes entries carry the complete pre-delete node,
// including its original id, unlike node_duplicate/node_paste's nodeData
// which always mints a fresh one).
func nodeFromSnapshot(data map[string]interface{}) *Node {
	n := nodeFromData(data)
	if id, ok := toInt64(data["id"]); ok {
		n.ID = id
	}
	if z, ok := paramFloat(data, "zIndex"); ok {
		n.ZIndex = z
	}
	return n
}

// idFloatMap converts a JSON object of id -> number into a typed map.
func idFloatMap(p map[string]interface{}, key string) (map[int64]float64, bool) {
	obj, ok := paramMap(p, key)
	if !ok {
		return nil, false
	}
	out := make(map[int64]float64, len(obj))
	for k, v := range obj {
		id, err := parseIDKey(k)
		if err != nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		out[id] = f
	}
	return out, true
}

// idObjectMap converts a JSON object of id -> object into a typed map, for
// previousProperties/previousState's id-keyed partial payloads.
func idObjectMap(p map[string]interface{}, key string) (map[int64]map[string]interface{}, bool) {
	obj, ok := paramMap(p, key)
	if !ok {
		return nil, false
	}
	out := make(map[int64]map[string]interface{}, len(obj))
	for k, v := range obj {
		id, err := parseIDKey(k)
		if err != nil {
			continue
		}
		m, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		out[id] = m
	}
	return out, true
}

// ApplyForward re-runs op's applier against state, used by redo to replay
// the original operation rather than invert it (per §4.3: "re-apply
// operations in their original order via CSM.applyOperation"). op.Type must
// already be a known, previously-validated type.
func ApplyForward(state *CanvasState, op *Operation) (*ChangeSet, error) {
	def, ok := registry[op.Type]
	if !ok {
		return nil, &ValidationError{Message: "unknown operation type " + op.Type}
	}
	return def.apply(state, op), nil
}
