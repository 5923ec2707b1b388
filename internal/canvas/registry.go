// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

// opDef is a single entry in the closed operation catalog: a validator that
// enforces structural requirements (strictly) and an applier that mutates
// the scene. Validation is existence-tolerant — missing node ids are a
// concern for the applier, not the validator.
type opDef struct {
	validate func(op *Operation) error
	apply    func(s *CanvasState, op *Operation) *ChangeSet
}

// registry is built once at init, keyed by operation type, mirroring the
// format-keyed parser registry shape used elsewhere in this codebase for
// closed, tag-dispatched catalogs.
var registry = map[string]*opDef{}

func register(opType string, def *opDef) {
	registry[opType] = def
}

func init() {
	register("node_create", &opDef{validate: validateNodeCreate, apply: applyNodeCreate})
	register("node_move", &opDef{validate: validateNodeMove, apply: applyNodeMove})
	register("node_delete", &opDef{validate: validateNodeDelete, apply: applyNodeDelete})
	register("node_resize", &opDef{validate: validateNodeResize, apply: applyNodeResize})
	register("node_rotate", &opDef{validate: validateNodeRotate, apply: applyNodeRotate})
	register("node_property_update", &opDef{validate: validateNodePropertyUpdate, apply: applyNodePropertyUpdate})
	register("node_batch_property_update", &opDef{validate: validateNodeBatchPropertyUpdate, apply: applyNodeBatchPropertyUpdate})
	register("node_reset", &opDef{validate: validateNodeReset, apply: applyNodeReset})
	register("video_toggle", &opDef{validate: validateVideoToggle, apply: applyVideoToggle})
	register("node_duplicate", &opDef{validate: validateNodeDuplicate, apply: applyNodeDuplicate})
	register("node_paste", &opDef{validate: validateNodePaste, apply: applyNodePaste})
	register("node_align", &opDef{validate: validateNodeAlign, apply: applyNodeAlign})
	register("node_layer_order", &opDef{validate: validateNodeLayerOrder, apply: applyNodeLayerOrder})
	register("image_upload_complete", &opDef{validate: validateImageUploadComplete, apply: applyImageUploadComplete})

	register("group_create", &opDef{validate: validateGroupCreate, apply: applyGroupCreate})
	register("group_add_node", &opDef{validate: validateGroupAddNode, apply: applyGroupAddNode})
	register("group_remove_node", &opDef{validate: validateGroupRemoveNode, apply: applyGroupRemoveNode})
	register("group_move", &opDef{validate: validateGroupMove, apply: applyGroupMove})
	register("group_resize", &opDef{validate: validateGroupResize, apply: applyGroupResize})
	register("group_toggle_collapsed", &opDef{validate: validateGroupToggleCollapsed, apply: applyGroupToggleCollapsed})
	register("group_update_style", &opDef{validate: validateGroupUpdateStyle, apply: applyGroupUpdateStyle})
}
