package domain

import (
	"encoding/json"
	"fmt"
)

// DecodeOpaque decodes a schema-light payload (type config, xp config, game
// data) into T. An empty payload yields the zero value.
func DecodeOpaque[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode opaque payload: %w", err)
	}
	return v, nil
}

// EncodeOpaque is the inverse of DecodeOpaque.
func EncodeOpaque(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode opaque payload: %w", err)
	}
	return data, nil
}
