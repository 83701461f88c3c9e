package storage

import (
	"encoding/json"
	"fmt"
	"slices"
)

// ExtensionState carries host owned values by key. Values stay raw JSON so
// a colony or map artifact can hold them without knowing their types.
type ExtensionState map[string]json.RawMessage

// Set encodes v and stores it under key, replacing any earlier value.
func (e *ExtensionState) Set(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding extension %q: %w", key, err)
	}
	if *e == nil {
		*e = ExtensionState{}
	}
	(*e)[key] = b
	return nil
}

// Get decodes the value under key into out. A missing key is not an error.
func (e ExtensionState) Get(key string, out any) (bool, error) {
	raw, ok := e[key]
	if !ok || isNullJSON(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decoding extension %q: %w", key, err)
	}
	return true, nil
}

func (e ExtensionState) Delete(key string) {
	delete(e, key)
}

// Keys lists the stored keys in sorted order.
func (e ExtensionState) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func isNullJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
