package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Fields is a partial record keyed by JSON field name.
type Fields map[string]any

// mergeFields overlays patch onto current one top-level key at a time. Unlike
// a stored record, a patch value must decode exactly into its field.
func mergeFields[T any](current T, patch Fields) (T, error) {
	typ := reflect.TypeOf(current)
	base, err := json.Marshal(current)
	if err != nil {
		return current, err
	}
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return current, err
	}
	for k, v := range patch {
		raw, err := json.Marshal(v)
		if err != nil {
			return current, fmt.Errorf("%w: %s: %v", ErrInvalidPatch, k, err)
		}
		if err := checkField(typ, k, raw); err != nil {
			return current, fmt.Errorf("%w: %s: %v", ErrInvalidPatch, k, err)
		}
		merged[k] = raw
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return current, err
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return out, nil
}
