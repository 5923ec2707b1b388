// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package canvas implements the canvas state manager: a closed catalog of
// typed operations validated and applied against a versioned scene graph.
package canvas

import "encoding/json"

// Node is a single scene element. Specialized attributes that don't belong
// to the common envelope (group child lists, color-correction blobs) live
// in Properties rather than as subtype fields.
type Node struct {
	ID          int64                  `json:"id"`
	Type        string                 `json:"type"`
	Pos         [2]float64             `json:"pos"`
	Size        [2]float64             `json:"size"`
	Rotation    float64                `json:"rotation"`
	AspectRatio float64                `json:"aspectRatio,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Flags       map[string]bool        `json:"flags,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	ZIndex      float64                `json:"zIndex,omitempty"`

	ToneCurve                interface{} `json:"toneCurve,omitempty"`
	Adjustments              interface{} `json:"adjustments,omitempty"`
	ColorBalance             interface{} `json:"colorBalance,omitempty"`
	ColorAdjustmentsBypassed bool        `json:"colorAdjustmentsBypassed,omitempty"`
	ToneCurveBypassed        bool        `json:"toneCurveBypassed,omitempty"`
	ColorBalanceBypassed     bool        `json:"colorBalanceBypassed,omitempty"`

	// IsCollapsed and ExpandedSize and Style apply to container/group nodes
	// only; kept as dedicated fields since group semantics reference them
	// directly rather than through the generic Properties map.
	IsCollapsed  bool                   `json:"isCollapsed,omitempty"`
	ExpandedSize [2]float64             `json:"expandedSize,omitempty"`
	Style        map[string]interface{} `json:"style,omitempty"`
}

// Node type tags used by the media pipeline and group semantics;
// node_create itself only requires params.type to be present, not a member
// of this set, so other tags (shapes, generic containers) pass through.
const (
	TypeImage = "media/image"
	TypeVideo = "media/video"
	TypeText  = "text"
	TypeGroup = "container/group"
)

func (n *Node) childNodes() []int64 {
	raw, ok := n.Properties["childNodes"]
	if !ok {
		return nil
	}
	list, ok := raw.([]int64)
	if ok {
		return list
	}
	// properties round-trips through JSON in practice; tolerate []interface{}.
	if items, ok := raw.([]interface{}); ok {
		ids := make([]int64, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case float64:
				ids = append(ids, int64(v))
			case int64:
				ids = append(ids, v)
			}
		}
		return ids
	}
	return nil
}

func (n *Node) setChildNodes(ids []int64) {
	if n.Properties == nil {
		n.Properties = map[string]interface{}{}
	}
	n.Properties["childNodes"] = ids
}

// CanvasState is the in-memory, versioned scene graph for one canvas. It is
// the single source of truth while loaded; persistence is write-through on
// every successful operation.
type CanvasState struct {
	CanvasID     int64
	Nodes        []*Node
	StateVersion int64
	LastModified int64 // unix millis
}

// canvasBlob is the JSON shape stored in canvases.canvas_data.
type canvasBlob struct {
	Nodes   []*Node `json:"nodes"`
	Version int64   `json:"version"`
}

func decodeCanvasBlob(data string) (*CanvasState, error) {
	if data == "" {
		return &CanvasState{}, nil
	}
	var blob canvasBlob
	if err := json.Unmarshal([]byte(data), &blob); err != nil {
		return nil, err
	}
	return &CanvasState{Nodes: blob.Nodes, StateVersion: blob.Version}, nil
}

func encodeCanvasBlob(s *CanvasState) (string, error) {
	blob := canvasBlob{Nodes: s.Nodes, Version: s.StateVersion}
	data, err := json.Marshal(blob)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *CanvasState) findNode(id int64) *Node {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func (s *CanvasState) removeNodes(ids map[int64]bool) []*Node {
	var removed []*Node
	kept := s.Nodes[:0:0]
	for _, n := range s.Nodes {
		if ids[n.ID] {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	s.Nodes = kept
	return removed
}

// ChangeSet is the fine-grained delta produced by an operation's applier.
// DeletedNodes carries full pre-deletion snapshots so undo can restore them.
type ChangeSet struct {
	Added        []*Node `json:"added,omitempty"`
	Updated      []*Node `json:"updated,omitempty"`
	Removed      []int64 `json:"removed,omitempty"`
	DeletedNodes []*Node `json:"deletedNodes,omitempty"`
}

// IsEmpty reports whether a ChangeSet carries no node-level delta, letting
// callers skip broadcasting a state_update that would be a no-op.
func (c *ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Operation is a single client-submitted mutation request.
type Operation struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	Params        map[string]interface{} `json:"params"`
	UndoData      map[string]interface{} `json:"undoData,omitempty"`
	UserID        int64                  `json:"-"`
	CanvasID      int64                  `json:"-"`
	TransactionID string                 `json:"-"`
}

// Result is the outcome of ExecuteOperation.
type Result struct {
	Success      bool
	StateVersion int64
	Changes      *ChangeSet
	Error        string
}

// ValidationError signals a structural problem with an operation's params,
// distinct from an existence-tolerant missing-id condition (which is not an
// error: see §4.1 of the operation catalog).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
