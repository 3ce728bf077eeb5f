// Package canon implements the deterministic JSON encoding shared by the
// MAC envelope (pkg/envelope) and the database manifest (pkg/manifest): keys
// sorted lexicographically at every nesting level, no insignificant
// whitespace, arrays left in their original order.
package canon

import (
	"encoding/json"
	"sort"
)

// Marshal encodes v as canonical JSON: any value is first passed through the
// standard marshaler, then its object keys are reordered lexicographically
// at every nesting level before being re-encoded without whitespace.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Canonicalize(raw)
}

// Canonicalize re-encodes an already-marshaled JSON document with sorted
// object keys.
func Canonicalize(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(sortKeys(v))
}

func sortKeys(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = sortKeys(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return vv
	}
}
