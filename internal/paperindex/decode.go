// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package paperindex

import (
	"encoding/json"
	"errors"
)

var errNotObject = errors.New("record is not a JSON object")

// jsonObject holds the undecoded fields of one API record. Each field is
// decoded on its own so a value of the wrong type falls back to its zero
// value instead of discarding the record.
type jsonObject map[string]json.RawMessage

// decodeObject splits raw into its fields. Only values that are not JSON
// objects (including null) are rejected.
func decodeObject(raw []byte) (jsonObject, error) {
	var obj jsonObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errNotObject
	}
	if obj == nil {
		return nil, errNotObject
	}
	return obj, nil
}

// String returns the named string field, or "" when it is absent, null, or
// not a string.
func (o jsonObject) String(name string) string {
	var s string
	if raw, ok := o[name]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// Int returns the named integer field, or 0 when it is absent, null, or not
// an integer.
func (o jsonObject) Int(name string) int {
	var n int
	if raw, ok := o[name]; ok && json.Unmarshal(raw, &n) == nil {
		return n
	}
	return 0
}

// Object returns the named nested object, or nil.
func (o jsonObject) Object(name string) jsonObject {
	raw, ok := o[name]
	if !ok {
		return nil
	}
	obj, err := decodeObject(raw)
	if err != nil {
		return nil
	}
	return obj
}

// Array returns the elements of the named array field, or nil.
func (o jsonObject) Array(name string) []json.RawMessage {
	var items []json.RawMessage
	if raw, ok := o[name]; ok && json.Unmarshal(raw, &items) == nil {
		return items
	}
	return nil
}
