// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package canvas

import "fmt"

// Operation params arrive as map[string]interface{} (decoded from JSON by
// the collaboration manager before reaching the CSM), so every accessor
// below tolerates the JSON number/array/map shapes encoding/json produces.

func paramString(p map[string]interface{}, key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

func paramFloat(p map[string]interface{}, key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

func paramBool(p map[string]interface{}, key string) (bool, bool) {
	v, ok := p[key].(bool)
	return v, ok
}

func paramMap(p map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := p[key].(map[string]interface{})
	return v, ok
}

func paramSlice(p map[string]interface{}, key string) ([]interface{}, bool) {
	v, ok := p[key].([]interface{})
	return v, ok
}

func paramVec2(p map[string]interface{}, key string) ([2]float64, bool) {
	items, ok := paramSlice(p, key)
	if !ok || len(items) != 2 {
		return [2]float64{}, false
	}
	var out [2]float64
	for i, item := range items {
		f, ok := toFloat(item)
		if !ok {
			return [2]float64{}, false
		}
		out[i] = f
	}
	return out, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// nodeIDs converts a JSON array param into []int64, rejecting anything that
// fails to parse as a number.
func nodeIDs(p map[string]interface{}, key string) ([]int64, error) {
	items, ok := paramSlice(p, key)
	if !ok {
		return nil, fmt.Errorf("%s must be an array", key)
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, ok := toInt64(item)
		if !ok {
			return nil, fmt.Errorf("%s contains a non-numeric id", key)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// float2Map converts a JSON object of id -> [x,y] into a typed map.
func float2Map(p map[string]interface{}, key string) (map[int64][2]float64, error) {
	obj, ok := paramMap(p, key)
	if !ok {
		return nil, fmt.Errorf("%s must be an object", key)
	}
	out := make(map[int64][2]float64, len(obj))
	for k, v := range obj {
		id, err := parseIDKey(k)
		if err != nil {
			return nil, err
		}
		items, ok := v.([]interface{})
		if !ok || len(items) != 2 {
			return nil, fmt.Errorf("%s[%s] must be a 2-element array", key, k)
		}
		x, ok1 := toFloat(items[0])
		y, ok2 := toFloat(items[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%s[%s] must contain numbers", key, k)
		}
		out[id] = [2]float64{x, y}
	}
	return out, nil
}

func parseIDKey(k string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(k, "%d", &id)
	if err != nil {
		return 0, fmt.Errorf("invalid node id key %q", k)
	}
	return id, nil
}
