// Package record provides an insertion-ordered flat key-value map.
//
// Records are used for pipeline execution contexts, request bindings and
// projected output. Key order matters: query modifiers are appended in
// binding order and exported columns follow record order.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Record is an ordered map from string keys to decoded JSON-compatible values.
// The zero value is ready to use. A Record is not safe for concurrent use.
type Record struct {
	keys   []string
	values map[string]any
}

// New returns an empty record.
func New() *Record {
	return &Record{values: make(map[string]any)}
}

// Of builds a record from alternating key/value pairs, keeping their order.
// It panics on an odd number of arguments or a non-string key.
func Of(kv ...any) *Record {
	if len(kv)%2 != 0 {
		panic("record.Of: odd number of arguments")
	}
	r := New()
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("record.Of: key %v is not a string", kv[i]))
		}
		r.Set(k, kv[i+1])
	}
	return r
}

// FromMap copies m into a new record with keys in sorted order.
func FromMap(m map[string]any) *Record {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r := New()
	for _, k := range keys {
		r.Set(k, m[k])
	}
	return r
}

// Set assigns v to k. A new key is appended; an existing key keeps its position.
func (r *Record) Set(k string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[k]; !exists {
		r.keys = append(r.keys, k)
	}
	r.values[k] = v
}

// Get returns the value stored under k.
func (r *Record) Get(k string) (any, bool) {
	if r == nil || r.values == nil {
		return nil, false
	}
	v, ok := r.values[k]
	return v, ok
}

// Delete removes k. It reports whether the key was present.
func (r *Record) Delete(k string) bool {
	if r == nil || r.values == nil {
		return false
	}
	if _, ok := r.values[k]; !ok {
		return false
	}
	delete(r.values, k)
	for i, key := range r.keys {
		if key == k {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns a copy of the keys in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of keys.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Merge copies every key of o into r, overwriting values r already holds.
func (r *Record) Merge(o *Record) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		r.Set(k, o.values[k])
	}
}

// Clone returns a shallow copy of r.
func (r *Record) Clone() *Record {
	c := New()
	if r == nil {
		return c
	}
	c.keys = append(c.keys, r.keys...)
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Map returns the contents as a plain map. Order is lost.
func (r *Record) Map() map[string]any {
	out := make(map[string]any, r.Len())
	if r == nil {
		return out
	}
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r != nil {
		for i, k := range r.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := json.Marshal(r.values[k])
			if err != nil {
				return nil, fmt.Errorf("marshal %q: %w", k, err)
			}
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its top-level key order. A
// top-level array is stored under its indices ("0", "1", ...). Nested values
// decode into map[string]any and []any.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	*r = Record{values: make(map[string]any)}

	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return fmt.Errorf("record: expected object or array, got %v", tok)
	}

	for i := 0; dec.More(); i++ {
		key := strconv.Itoa(i)
		if delim == '{' {
			kt, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok = kt.(string)
			if !ok {
				return fmt.Errorf("record: unexpected key token %v", kt)
			}
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("record: decode %q: %w", key, err)
		}
		r.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Decode parses a JSON response body into a record.
func Decode(body []byte) (*Record, error) {
	r := New()
	if err := json.Unmarshal(body, r); err != nil {
		return nil, err
	}
	return r, nil
}
