package render

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v2"
)

// OrderedMap is a string-keyed map that keeps its insertion order when encoded
// as JSON or YAML.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap returns a new empty *OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: map[string]any{}}
}

// Set sets key to v.  A new key is appended; an existing one keeps its
// position.
func (m *OrderedMap) Set(key string, v any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value of key.
func (m *OrderedMap) Get(key string) (v any, ok bool) {
	v, ok = m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// Len returns the number of keys.
func (m *OrderedMap) Len() int {
	return len(m.keys)
}

// type check
var (
	_ json.Marshaler = (*OrderedMap)(nil)
	_ yaml.Marshaler = (*OrderedMap)(nil)
)

// MarshalJSON implements the json.Marshaler interface for *OrderedMap.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// MarshalYAML implements the yaml.Marshaler interface for *OrderedMap.
func (m *OrderedMap) MarshalYAML() (any, error) {
	ms := make(yaml.MapSlice, 0, len(m.keys))
	for _, k := range m.keys {
		ms = append(ms, yaml.MapItem{Key: k, Value: m.values[k]})
	}
	return ms, nil
}
