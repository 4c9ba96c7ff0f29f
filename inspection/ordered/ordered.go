// Copyright (C) 2024 ScaleInspect, Inc.
// See LICENSE for copying information.

// Package ordered implements a JSON document that preserves key order.
//
// The inspection aggregate is persisted as a JSON object whose key order is
// user visible: sections iterate in template order and fields iterate in the
// order the template author declared. encoding/json maps lose that order, so
// the aggregate is modeled with Doc instead.
package ordered

import (
	"bytes"
	"encoding/json"

	"github.com/zeebo/errs"
)

// Error is the default ordered errs class.
var Error = errs.Class("ordered")

// Doc is a JSON object with insertion-ordered keys. Values are one of:
// nil, bool, float64, string, []interface{} or *Doc.
type Doc struct {
	keys   []string
	values map[string]interface{}
}

// NewDoc creates an empty document.
func NewDoc() *Doc {
	return &Doc{values: map[string]interface{}{}}
}

// Len returns the number of keys.
func (doc *Doc) Len() int {
	if doc == nil {
		return 0
	}
	return len(doc.keys)
}

// Keys returns the keys in insertion order. The returned slice is shared;
// callers must not modify it.
func (doc *Doc) Keys() []string {
	if doc == nil {
		return nil
	}
	return doc.keys
}

// Has returns whether the key is present.
func (doc *Doc) Has(key string) bool {
	if doc == nil {
		return false
	}
	_, ok := doc.values[key]
	return ok
}

// Get returns the value stored under key.
func (doc *Doc) Get(key string) (interface{}, bool) {
	if doc == nil {
		return nil, false
	}
	value, ok := doc.values[key]
	return value, ok
}

// GetDoc returns the value under key when it is a nested document.
func (doc *Doc) GetDoc(key string) (*Doc, bool) {
	value, ok := doc.Get(key)
	if !ok {
		return nil, false
	}
	nested, ok := value.(*Doc)
	return nested, ok
}

// GetString returns the value under key when it is a string.
func (doc *Doc) GetString(key string) (string, bool) {
	value, ok := doc.Get(key)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// Set stores value under key, appending the key when it is new.
func (doc *Doc) Set(key string, value interface{}) {
	if _, ok := doc.values[key]; !ok {
		doc.keys = append(doc.keys, key)
	}
	doc.values[key] = value
}

// Delete removes the key.
func (doc *Doc) Delete(key string) {
	if _, ok := doc.values[key]; !ok {
		return
	}
	delete(doc.values, key)
	for i, k := range doc.keys {
		if k == key {
			doc.keys = append(doc.keys[:i], doc.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the document.
func (doc *Doc) Clone() *Doc {
	if doc == nil {
		return nil
	}
	out := NewDoc()
	for _, key := range doc.keys {
		out.Set(key, cloneValue(doc.values[key]))
	}
	return out
}

func cloneValue(value interface{}) interface{} {
	switch value := value.(type) {
	case *Doc:
		return value.Clone()
	case []interface{}:
		out := make([]interface{}, len(value))
		for i := range value {
			out[i] = cloneValue(value[i])
		}
		return out
	default:
		return value
	}
}

// Reorder rewrites the key order so that keys listed in order come first,
// in that order, followed by the remaining keys in their current order.
func (doc *Doc) Reorder(order []string) {
	reordered := make([]string, 0, len(doc.keys))
	seen := make(map[string]bool, len(doc.keys))
	for _, key := range order {
		if _, ok := doc.values[key]; ok && !seen[key] {
			reordered = append(reordered, key)
			seen[key] = true
		}
	}
	for _, key := range doc.keys {
		if !seen[key] {
			reordered = append(reordered, key)
			seen[key] = true
		}
	}
	doc.keys = reordered
}

// Merge deep-merges src into doc. Nested documents merge key-wise, any
// other value from src replaces the value in doc.
func (doc *Doc) Merge(src *Doc) {
	if src == nil {
		return
	}
	for _, key := range src.keys {
		incoming := src.values[key]
		existing, ok := doc.values[key]
		if ok {
			existingDoc, isDoc := existing.(*Doc)
			incomingDoc, srcIsDoc := incoming.(*Doc)
			if isDoc && srcIsDoc {
				existingDoc.Merge(incomingDoc)
				continue
			}
		}
		doc.Set(key, cloneValue(incoming))
	}
}

// MarshalJSON implements json.Marshaler emitting keys in insertion order.
func (doc *Doc) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range doc.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyData, err := json.Marshal(key)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		buf.Write(keyData)
		buf.WriteByte(':')
		valueData, err := json.Marshal(doc.values[key])
		if err != nil {
			return nil, Error.Wrap(err)
		}
		buf.Write(valueData)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler preserving the key order of the
// incoming object.
func (doc *Doc) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	token, err := dec.Token()
	if err != nil {
		return Error.Wrap(err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return Error.New("expected object, got %v", token)
	}

	parsed, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*doc = *parsed
	return nil
}

// FromValue converts a decoded JSON value (for example the result of
// decoding into interface{}) into the ordered representation. Plain maps
// lose their original order; use UnmarshalJSON when order matters.
func FromValue(value interface{}) interface{} {
	switch value := value.(type) {
	case map[string]interface{}:
		doc := NewDoc()
		for _, key := range sortedKeys(value) {
			doc.Set(key, FromValue(value[key]))
		}
		return doc
	case []interface{}:
		out := make([]interface{}, len(value))
		for i := range value {
			out[i] = FromValue(value[i])
		}
		return out
	default:
		return value
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// Parse decodes data into a document.
func Parse(data []byte) (*Doc, error) {
	doc := NewDoc()
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeObject(dec *json.Decoder) (*Doc, error) {
	doc := NewDoc()
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, Error.New("expected object key, got %v", keyToken)
		}

		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		doc.Set(key, value)
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return nil, Error.Wrap(err)
	}
	return doc, nil
}

func decodeArray(dec *json.Decoder) ([]interface{}, error) {
	out := []interface{}{}
	for dec.More() {
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, Error.Wrap(err)
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, Error.Wrap(err)
	}

	switch token := token.(type) {
	case json.Delim:
		switch token {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return nil, Error.New("unexpected delimiter %v", token)
		}
	case json.Number:
		f, err := token.Float64()
		if err != nil {
			return nil, Error.Wrap(err)
		}
		return f, nil
	default:
		return token, nil
	}
}
