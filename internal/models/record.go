// Package models defines the data structures exchanged with the STATSports
// third-party API and persisted in run directories.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// record keeps an API object exactly as received so that persisting and
// re-reading it never drops fields this package does not model.
type record struct {
	raw json.RawMessage
}

// MarshalJSON implements json.Marshaler.
func (r record) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("{}"), nil
	}
	return r.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *record) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		r.raw = nil
		return nil
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected JSON object, got %.20q", trimmed)
	}
	r.raw = append(json.RawMessage(nil), trimmed...)
	return nil
}

// Fields decodes the record into a generic object. Numbers are kept as
// json.Number so that re-encoding is lossless.
func (r record) Fields() map[string]any {
	if len(r.raw) == 0 {
		return map[string]any{}
	}
	dec := json.NewDecoder(bytes.NewReader(r.raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// Raw returns the original JSON bytes.
func (r record) Raw() json.RawMessage {
	return r.raw
}

func newRecord(fields map[string]any) (record, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return record{}, fmt.Errorf("marshal record: %w", err)
	}
	return record{raw: raw}, nil
}

// Object returns m[key] as an object, or an empty object when it is absent
// or of another type.
func Object(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

// Objects returns the objects contained in the array m[key], skipping
// elements that are not objects.
func Objects(m map[string]any, key string) []map[string]any {
	arr, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

// String renders a scalar field as text. Absent and null values are "".
func String(m map[string]any, key string) string {
	return Text(m[key])
}

// Text renders a decoded JSON scalar as text.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	}
}
