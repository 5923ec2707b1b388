// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

// directAttrs is the set of property names that write directly onto the
// Node struct rather than into its Properties map.
var directAttrs = map[string]bool{
	"title":                    true,
	"rotation":                 true,
	"aspectRatio":              true,
	"toneCurve":                true,
	"toneCurveBypassed":        true,
	"colorAdjustmentsBypassed": true,
	"adjustments":              true,
	"colorBalance":             true,
	"colorBalanceBypassed":     true,
}

// setNodeAttr writes a single property onto a node, routing through the
// direct-attribute set or the generic Properties map per §4.1.
func setNodeAttr(n *Node, property string, value interface{}) {
	switch property {
	case "title":
		if s, ok := value.(string); ok {
			n.Title = s
		}
	case "rotation":
		if f, ok := toFloat(value); ok {
			n.Rotation = f
		}
	case "aspectRatio":
		if f, ok := toFloat(value); ok {
			n.AspectRatio = f
		}
	case "toneCurve":
		n.ToneCurve = value
	case "adjustments":
		n.Adjustments = value
	case "colorBalance":
		n.ColorBalance = value
	case "toneCurveBypassed":
		if b, ok := value.(bool); ok {
			n.ToneCurveBypassed = b
		}
	case "colorAdjustmentsBypassed":
		if b, ok := value.(bool); ok {
			n.ColorAdjustmentsBypassed = b
		}
	case "colorBalanceBypassed":
		if b, ok := value.(bool); ok {
			n.ColorBalanceBypassed = b
		}
	default:
		if n.Properties == nil {
			n.Properties = map[string]interface{}{}
		}
		n.Properties[property] = value
	}
}

// getNodeAttr mirrors setNodeAttr for reading a property back. Nothing in
// the package calls it at present.
func getNodeAttr(n *Node, property string) (interface{}, bool) {
	if !directAttrs[property] {
		if n.Properties == nil {
			return nil, false
		}
		v, ok := n.Properties[property]
		return v, ok
	}
	switch property {
	case "title":
		return n.Title, true
	case "rotation":
		return n.Rotation, true
	case "aspectRatio":
		return n.AspectRatio, true
	case "toneCurve":
		return n.ToneCurve, n.ToneCurve != nil
	case "adjustments":
		return n.Adjustments, n.Adjustments != nil
	case "colorBalance":
		return n.ColorBalance, n.ColorBalance != nil
	case "toneCurveBypassed":
		return n.ToneCurveBypassed, true
	case "colorAdjustmentsBypassed":
		return n.ColorAdjustmentsBypassed, true
	case "colorBalanceBypassed":
		return n.ColorBalanceBypassed, true
	}
	return nil, false
}
