// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

import (
	"fmt"
	"strings"
)

func isMediaType(t string) bool {
	return t == TypeImage || t == TypeVideo
}

// sanitizeMediaSrc drops an inline data: URL from properties.src; media
// nodes must reference uploaded content by hash/serverUrl, never inline.
func sanitizeMediaSrc(n *Node) {
	if !isMediaType(n.Type) || n.Properties == nil {
		return
	}
	src, ok := n.Properties["src"].(string)
	if ok && strings.HasPrefix(src, "data:") {
		delete(n.Properties, "src")
	}
}

// --- node_create ---

func validateNodeCreate(op *Operation) error {
	if _, ok := paramString(op.Params, "type"); !ok {
		return &ValidationError{Message: "node_create requires params.type"}
	}
	if _, ok := paramVec2(op.Params, "pos"); !ok {
		return &ValidationError{Message: "node_create requires params.pos as [x,y]"}
	}
	return nil
}

func applyNodeCreate(s *CanvasState, op *Operation) *ChangeSet {
	nodeType, _ := paramString(op.Params, "type")
	pos, _ := paramVec2(op.Params, "pos")

	n := &Node{Type: nodeType, Pos: pos}

	if id, ok := paramFloat(op.Params, "id"); ok {
		n.ID = int64(id)
	} else {
		n.ID = mintNodeID()
	}
	if size, ok := paramVec2(op.Params, "size"); ok {
		n.Size = size
	}
	if rot, ok := paramFloat(op.Params, "rotation"); ok {
		n.Rotation = rot
	}
	if ar, ok := paramFloat(op.Params, "aspectRatio"); ok {
		n.AspectRatio = ar
	}
	if title, ok := paramString(op.Params, "title"); ok {
		n.Title = title
	}
	if props, ok := paramMap(op.Params, "properties"); ok {
		n.Properties = props
	}
	if flagsRaw, ok := paramMap(op.Params, "flags"); ok {
		flags := make(map[string]bool, len(flagsRaw))
		for k, v := range flagsRaw {
			if b, ok := v.(bool); ok {
				flags[k] = b
			}
		}
		n.Flags = flags
	}
	if n.Type == TypeGroup && n.Properties == nil {
		n.Properties = map[string]interface{}{}
	}
	if n.Type == TypeGroup {
		if _, ok := n.Properties["childNodes"]; !ok {
			n.setChildNodes([]int64{})
		}
	}

	sanitizeMediaSrc(n)

	s.Nodes = append(s.Nodes, n)
	return &ChangeSet{Added: []*Node{n}}
}

// --- node_move ---

func validateNodeMove(op *Operation) error {
	if _, ok := paramFloat(op.Params, "nodeId"); ok {
		if _, ok := paramVec2(op.Params, "position"); !ok {
			return &ValidationError{Message: "node_move requires params.position"}
		}
		return nil
	}
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_move requires at least one node id"}
	}
	positions, ok := paramSlice(op.Params, "positions")
	if !ok || len(positions) != len(ids) {
		return &ValidationError{Message: "node_move positions must match nodeIds length"}
	}
	return nil
}

func applyNodeMove(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}

	if nodeID, ok := paramFloat(op.Params, "nodeId"); ok {
		pos, _ := paramVec2(op.Params, "position")
		if n := s.findNode(int64(nodeID)); n != nil {
			n.Pos = pos
			changes.Updated = append(changes.Updated, n)
		}
		return changes
	}

	ids, _ := nodeIDs(op.Params, "nodeIds")
	positions, _ := paramSlice(op.Params, "positions")
	for i, id := range ids {
		n := s.findNode(id)
		if n == nil {
			continue
		}
		items, ok := positions[i].([]interface{})
		if !ok || len(items) != 2 {
			continue
		}
		x, ok1 := toFloat(items[0])
		y, ok2 := toFloat(items[1])
		if !ok1 || !ok2 {
			continue
		}
		n.Pos = [2]float64{x, y}
		changes.Updated = append(changes.Updated, n)
	}
	return changes
}

// --- node_delete ---

func validateNodeDelete(op *Operation) error {
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_delete requires at least one node id"}
	}
	return nil
}

func applyNodeDelete(s *CanvasState, op *Operation) *ChangeSet {
	ids, _ := nodeIDs(op.Params, "nodeIds")
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	deleted := s.removeNodes(idSet)
	changes := &ChangeSet{DeletedNodes: deleted}
	for _, n := range deleted {
		changes.Removed = append(changes.Removed, n.ID)
	}

	// Prune deleted ids from every surviving group's childNodes.
	for _, n := range s.Nodes {
		if n.Type != TypeGroup {
			continue
		}
		children := n.childNodes()
		if len(children) == 0 {
			continue
		}
		pruned := children[:0:0]
		changed := false
		for _, childID := range children {
			if idSet[childID] {
				changed = true
				continue
			}
			pruned = append(pruned, childID)
		}
		if changed {
			n.setChildNodes(pruned)
			changes.Updated = append(changes.Updated, n)
		}
	}

	return changes
}

// --- node_resize ---

func validateNodeResize(op *Operation) error {
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_resize requires at least one node id"}
	}
	sizes, ok := paramSlice(op.Params, "sizes")
	if !ok || len(sizes) != len(ids) {
		return &ValidationError{Message: "node_resize sizes must match nodeIds length"}
	}
	if positions, ok := paramSlice(op.Params, "positions"); ok && len(positions) != len(ids) {
		return &ValidationError{Message: "node_resize positions must match nodeIds length"}
	}
	return nil
}

func applyNodeResize(s *CanvasState, op *Operation) *ChangeSet {
	ids, _ := nodeIDs(op.Params, "nodeIds")
	sizes, _ := paramSlice(op.Params, "sizes")
	positions, havePositions := paramSlice(op.Params, "positions")

	changes := &ChangeSet{}
	for i, id := range ids {
		n := s.findNode(id)
		if n == nil {
			continue
		}
		items, ok := sizes[i].([]interface{})
		if !ok || len(items) != 2 {
			continue
		}
		w, ok1 := toFloat(items[0])
		h, ok2 := toFloat(items[1])
		if !ok1 || !ok2 || h == 0 {
			continue
		}

		oldCenter := [2]float64{n.Pos[0] + n.Size[0]/2, n.Pos[1] + n.Size[1]/2}
		n.Size = [2]float64{w, h}
		n.AspectRatio = w / h

		if havePositions {
			if posItems, ok := positions[i].([]interface{}); ok && len(posItems) == 2 {
				if x, ok1 := toFloat(posItems[0]); ok1 {
					if y, ok2 := toFloat(posItems[1]); ok2 {
						n.Pos = [2]float64{x, y}
					}
				}
			}
		} else if n.Rotation != 0 {
			n.Pos = [2]float64{oldCenter[0] - w/2, oldCenter[1] - h/2}
		}

		changes.Updated = append(changes.Updated, n)
	}
	return changes
}

// --- node_rotate ---

func validateNodeRotate(op *Operation) error {
	if _, ok := paramFloat(op.Params, "nodeId"); ok {
		if _, ok := paramFloat(op.Params, "angle"); !ok {
			return &ValidationError{Message: "node_rotate requires params.angle"}
		}
		return nil
	}
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_rotate requires at least one node id"}
	}
	angles, ok := paramSlice(op.Params, "angles")
	if !ok || len(angles) != len(ids) {
		return &ValidationError{Message: "node_rotate angles must match nodeIds length"}
	}
	return nil
}

func applyNodeRotate(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}

	if nodeID, ok := paramFloat(op.Params, "nodeId"); ok {
		angle, _ := paramFloat(op.Params, "angle")
		if n := s.findNode(int64(nodeID)); n != nil {
			n.Rotation = angle
			if pos, ok := paramVec2(op.Params, "position"); ok {
				n.Pos = pos
			}
			changes.Updated = append(changes.Updated, n)
		}
		return changes
	}

	ids, _ := nodeIDs(op.Params, "nodeIds")
	angles, _ := paramSlice(op.Params, "angles")
	positions, havePositions := paramSlice(op.Params, "positions")

	for i, id := range ids {
		n := s.findNode(id)
		if n == nil {
			continue
		}
		angle, ok := toFloat(angles[i])
		if !ok {
			continue
		}
		n.Rotation = angle
		if havePositions && i < len(positions) {
			if items, ok := positions[i].([]interface{}); ok && len(items) == 2 {
				if x, ok1 := toFloat(items[0]); ok1 {
					if y, ok2 := toFloat(items[1]); ok2 {
						n.Pos = [2]float64{x, y}
					}
				}
			}
		}
		changes.Updated = append(changes.Updated, n)
	}
	return changes
}

// --- node_property_update ---

func validateNodePropertyUpdate(op *Operation) error {
	if _, ok := paramFloat(op.Params, "nodeId"); !ok {
		return &ValidationError{Message: "node_property_update requires params.nodeId"}
	}
	if _, ok := paramString(op.Params, "property"); !ok {
		return &ValidationError{Message: "node_property_update requires params.property"}
	}
	if _, ok := op.Params["value"]; !ok {
		return &ValidationError{Message: "node_property_update requires params.value"}
	}
	return nil
}

func applyNodePropertyUpdate(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	nodeID, _ := paramFloat(op.Params, "nodeId")
	property, _ := paramString(op.Params, "property")
	value := op.Params["value"]

	n := s.findNode(int64(nodeID))
	if n == nil {
		return changes
	}
	setNodeAttr(n, property, value)
	changes.Updated = append(changes.Updated, n)
	return changes
}

// --- node_batch_property_update ---

func validateNodeBatchPropertyUpdate(op *Operation) error {
	updates, ok := paramSlice(op.Params, "updates")
	if !ok || len(updates) == 0 {
		return &ValidationError{Message: "node_batch_property_update requires a non-empty params.updates"}
	}
	for i, raw := range updates {
		u, ok := raw.(map[string]interface{})
		if !ok {
			return &ValidationError{Message: fmt.Sprintf("updates[%d] must be an object", i)}
		}
		if _, ok := paramFloat(u, "nodeId"); !ok {
			return &ValidationError{Message: fmt.Sprintf("updates[%d] requires nodeId", i)}
		}
		if _, ok := paramString(u, "property"); !ok {
			return &ValidationError{Message: fmt.Sprintf("updates[%d] requires property", i)}
		}
	}
	return nil
}

func applyNodeBatchPropertyUpdate(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	updates, _ := paramSlice(op.Params, "updates")
	seen := map[int64]*Node{}

	for _, raw := range updates {
		u, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		nodeID, _ := paramFloat(u, "nodeId")
		property, _ := paramString(u, "property")
		value := u["value"]

		id := int64(nodeID)
		n := seen[id]
		if n == nil {
			n = s.findNode(id)
			if n == nil {
				continue
			}
			seen[id] = n
		}
		// batch updates always write under properties, never the direct set.
		if n.Properties == nil {
			n.Properties = map[string]interface{}{}
		}
		n.Properties[property] = value
	}

	for _, n := range seen {
		changes.Updated = append(changes.Updated, n)
	}
	return changes
}

// --- node_reset ---

func validateNodeReset(op *Operation) error {
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_reset requires at least one node id"}
	}
	return nil
}

func applyNodeReset(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	ids, _ := nodeIDs(op.Params, "nodeIds")
	resetRotation, _ := paramBool(op.Params, "resetRotation")
	resetAspectRatio, _ := paramBool(op.Params, "resetAspectRatio")
	values, _ := paramMap(op.Params, "values")

	for _, id := range ids {
		n := s.findNode(id)
		if n == nil {
			continue
		}
		changed := false
		if resetRotation {
			n.Rotation = 0
			changed = true
		}
		if resetAspectRatio {
			target := n.AspectRatio
			if values != nil {
				if v, ok := values[fmt.Sprintf("%d", id)]; ok {
					if f, ok := toFloat(v); ok && f > 0 {
						target = f
					}
				}
			}
			if target > 0 {
				n.AspectRatio = target
				n.Size[1] = n.Size[0] / target
				changed = true
			}
		}
		if changed {
			changes.Updated = append(changes.Updated, n)
		}
	}
	return changes
}

// --- video_toggle ---

func validateVideoToggle(op *Operation) error {
	if _, ok := paramFloat(op.Params, "nodeId"); !ok {
		return &ValidationError{Message: "video_toggle requires params.nodeId"}
	}
	return nil
}

func applyVideoToggle(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	nodeID, _ := paramFloat(op.Params, "nodeId")
	n := s.findNode(int64(nodeID))
	if n == nil || n.Type != TypeVideo {
		return changes
	}
	if n.Properties == nil {
		n.Properties = map[string]interface{}{}
	}
	if paused, ok := paramBool(op.Params, "paused"); ok {
		n.Properties["paused"] = paused
	} else {
		current, _ := n.Properties["paused"].(bool)
		n.Properties["paused"] = !current
	}
	changes.Updated = append(changes.Updated, n)
	return changes
}

// --- node_duplicate ---

func validateNodeDuplicate(op *Operation) error {
	if _, ok := paramSlice(op.Params, "nodeIds"); ok {
		return nil
	}
	if _, ok := paramSlice(op.Params, "nodeData"); ok {
		return nil
	}
	return &ValidationError{Message: "node_duplicate requires params.nodeIds or params.nodeData"}
}

func cloneNode(src *Node, newID int64, offset [2]float64) *Node {
	clone := *src
	clone.ID = newID
	clone.Pos = [2]float64{src.Pos[0] + offset[0], src.Pos[1] + offset[1]}
	if src.Properties != nil {
		props := make(map[string]interface{}, len(src.Properties))
		for k, v := range src.Properties {
			props[k] = v
		}
		clone.Properties = props
	}
	if src.Flags != nil {
		flags := make(map[string]bool, len(src.Flags))
		for k, v := range src.Flags {
			flags[k] = v
		}
		clone.Flags = flags
	}
	return &clone
}

func applyNodeDuplicate(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	offset := [2]float64{20, 20}

	if ids, ok := paramSlice(op.Params, "nodeIds"); ok {
		if off, ok := paramVec2(op.Params, "offset"); ok {
			offset = off
		}
		for _, raw := range ids {
			id, ok := toInt64(raw)
			if !ok {
				continue
			}
			src := s.findNode(id)
			if src == nil {
				continue
			}
			// nodeIds path does not preserve _operationId (see open questions).
			clone := cloneNode(src, mintNodeID(), offset)
			if clone.Properties != nil {
				delete(clone.Properties, "_operationId")
			}
			s.Nodes = append(s.Nodes, clone)
			changes.Added = append(changes.Added, clone)
		}
		return changes
	}

	if nodeData, ok := paramSlice(op.Params, "nodeData"); ok {
		offset = [2]float64{0, 0}
		if off, ok := paramVec2(op.Params, "offset"); ok {
			offset = off
		}
		for _, raw := range nodeData {
			data, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			n := nodeFromData(data)
			n.ID = mintNodeID()
			n.Pos = [2]float64{n.Pos[0] + offset[0], n.Pos[1] + offset[1]}
			// nodeData path preserves _operationId when supplied.
			s.Nodes = append(s.Nodes, n)
			changes.Added = append(changes.Added, n)
		}
	}
	return changes
}

// nodeFromData builds a Node from a client-submitted plain object, as used
// by node_duplicate{nodeData} and node_paste{nodeData}.
func nodeFromData(data map[string]interface{}) *Node {
	n := &Node{}
	if t, ok := paramString(data, "type"); ok {
		n.Type = t
	}
	if pos, ok := paramVec2(data, "pos"); ok {
		n.Pos = pos
	}
	if size, ok := paramVec2(data, "size"); ok {
		n.Size = size
	}
	if rot, ok := paramFloat(data, "rotation"); ok {
		n.Rotation = rot
	}
	if ar, ok := paramFloat(data, "aspectRatio"); ok {
		n.AspectRatio = ar
	}
	if title, ok := paramString(data, "title"); ok {
		n.Title = title
	}
	if props, ok := paramMap(data, "properties"); ok {
		copied := make(map[string]interface{}, len(props))
		for k, v := range props {
			copied[k] = v
		}
		n.Properties = copied
	}
	sanitizeMediaSrc(n)
	return n
}

// --- node_paste ---

func validateNodePaste(op *Operation) error {
	nodeData, ok := paramSlice(op.Params, "nodeData")
	if !ok || len(nodeData) == 0 {
		return &ValidationError{Message: "node_paste requires a non-empty params.nodeData"}
	}
	if _, ok := paramVec2(op.Params, "targetPosition"); !ok {
		return &ValidationError{Message: "node_paste requires params.targetPosition"}
	}
	return nil
}

func applyNodePaste(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	nodeData, _ := paramSlice(op.Params, "nodeData")
	target, _ := paramVec2(op.Params, "targetPosition")

	// First pass: compute the clipboard bounding box center so the pasted
	// group can be re-centered on targetPosition.
	minX, minY := 0.0, 0.0
	maxX, maxY := 0.0, 0.0
	first := true
	for _, raw := range nodeData {
		data, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		pos, _ := paramVec2(data, "pos")
		size, _ := paramVec2(data, "size")
		x0, y0 := pos[0], pos[1]
		x1, y1 := pos[0]+size[0], pos[1]+size[1]
		if first {
			minX, minY, maxX, maxY = x0, y0, x1, y1
			first = false
			continue
		}
		if x0 < minX {
			minX = x0
		}
		if y0 < minY {
			minY = y0
		}
		if x1 > maxX {
			maxX = x1
		}
		if y1 > maxY {
			maxY = y1
		}
	}
	bboxCenter := [2]float64{(minX + maxX) / 2, (minY + maxY) / 2}
	offset := [2]float64{target[0] - bboxCenter[0], target[1] - bboxCenter[1]}

	created := make([]*Node, len(nodeData))
	for i, raw := range nodeData {
		data, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		n := nodeFromData(data)
		n.ID = mintNodeID()
		n.Pos = [2]float64{n.Pos[0] + offset[0], n.Pos[1] + offset[1]}
		if n.Type == TypeGroup {
			n.setChildNodes([]int64{})
		}
		created[i] = n
		s.Nodes = append(s.Nodes, n)
		changes.Added = append(changes.Added, n)
	}

	// Second pass: rewire group child relationships using
	// properties._pasteChildIndices (indices into the submitted array).
	for i, raw := range nodeData {
		data, ok := raw.(map[string]interface{})
		if !ok || created[i] == nil || created[i].Type != TypeGroup {
			continue
		}
		props, _ := paramMap(data, "properties")
		indices, ok := props["_pasteChildIndices"].([]interface{})
		if !ok {
			continue
		}
		var childIDs []int64
		for _, idxRaw := range indices {
			idx, ok := toInt64(idxRaw)
			if !ok || idx < 0 || int(idx) >= len(created) || created[idx] == nil {
				continue
			}
			childIDs = append(childIDs, created[idx].ID)
		}
		created[i].setChildNodes(childIDs)
	}

	return changes
}

// --- node_align ---

func validateNodeAlign(op *Operation) error {
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_align requires at least one node id"}
	}
	positions, ok := paramSlice(op.Params, "positions")
	if !ok || len(positions) != len(ids) {
		return &ValidationError{Message: "node_align positions must match nodeIds length"}
	}
	return nil
}

func applyNodeAlign(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	ids, _ := nodeIDs(op.Params, "nodeIds")
	positions, _ := paramSlice(op.Params, "positions")

	for i, id := range ids {
		n := s.findNode(id)
		if n == nil {
			continue
		}
		items, ok := positions[i].([]interface{})
		if !ok || len(items) != 2 {
			continue
		}
		x, ok1 := toFloat(items[0])
		y, ok2 := toFloat(items[1])
		if !ok1 || !ok2 {
			continue
		}
		n.Pos = [2]float64{x, y}
		changes.Updated = append(changes.Updated, n)
	}
	return changes
}

// --- node_layer_order ---

func validateNodeLayerOrder(op *Operation) error {
	ids, err := nodeIDs(op.Params, "nodeIds")
	if err != nil {
		return &ValidationError{Message: err.Error()}
	}
	if len(ids) == 0 {
		return &ValidationError{Message: "node_layer_order requires at least one node id"}
	}
	if _, ok := paramMap(op.Params, "zIndexUpdates"); !ok {
		return &ValidationError{Message: "node_layer_order requires params.zIndexUpdates"}
	}
	return nil
}

func applyNodeLayerOrder(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	zIndexUpdates, _ := paramMap(op.Params, "zIndexUpdates")

	for key, raw := range zIndexUpdates {
		id, err := parseIDKey(key)
		if err != nil {
			continue
		}
		z, ok := toFloat(raw)
		if !ok {
			continue
		}
		n := s.findNode(id)
		if n == nil {
			continue
		}
		n.ZIndex = z
		changes.Updated = append(changes.Updated, n)
	}
	return changes
}

// --- image_upload_complete ---

func validateImageUploadComplete(op *Operation) error {
	if _, ok := paramString(op.Params, "hash"); !ok {
		return &ValidationError{Message: "image_upload_complete requires params.hash"}
	}
	if _, ok := paramString(op.Params, "serverUrl"); !ok {
		return &ValidationError{Message: "image_upload_complete requires params.serverUrl"}
	}
	return nil
}

func applyImageUploadComplete(s *CanvasState, op *Operation) *ChangeSet {
	changes := &ChangeSet{}
	hash, _ := paramString(op.Params, "hash")
	serverURL, _ := paramString(op.Params, "serverUrl")
	serverFilename, _ := paramString(op.Params, "serverFilename")

	for _, n := range s.Nodes {
		if n.Type != TypeImage || n.Properties == nil {
			continue
		}
		nodeHash, _ := n.Properties["hash"].(string)
		if nodeHash != hash {
			continue
		}
		if _, hasURL := n.Properties["serverUrl"]; hasURL {
			continue // idempotent: already bound, no further updates
		}
		n.Properties["serverUrl"] = serverURL
		if serverFilename != "" {
			n.Properties["serverFilename"] = serverFilename
		}
		changes.Updated = append(changes.Updated, n)
	}
	return changes
}
