package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap is a JSON object stored in a jsonb column. A nil map is NULL.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan jsonb: unsupported type %T", src)
	}

	if len(data) == 0 {
		*m = nil
		return nil
	}

	out := JSONMap{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("scan jsonb: %w", err)
	}
	*m = out
	return nil
}

// String returns the value at key if it is a non-empty string.
func (m JSONMap) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Strings returns the value at key as a string slice, accepting both
// []string and the []any produced by encoding/json.
func (m JSONMap) Strings(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ToJSONMap round-trips v through encoding/json into a JSONMap.
func ToJSONMap(v any) (JSONMap, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := JSONMap{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
