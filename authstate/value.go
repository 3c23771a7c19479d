// Package authstate models the opaque credential and signal-key blobs owned by
// the remote protocol, and their binary-safe textual encoding.
//
// A blob is a tree of Value nodes. Value is a sealed union: the only
// implementations are the types declared in this file.
package authstate

import "bytes"

type Value interface {
	isValue()
}

type (
	Null     struct{}
	Bool     bool
	Number   string // literal textual form, never rounded
	String   string
	Binary   []byte
	Sequence []Value
	Mapping  map[string]Value
)

func (Null) isValue()     {}
func (Bool) isValue()     {}
func (Number) isValue()   {}
func (String) isValue()   {}
func (Binary) isValue()   {}
func (Sequence) isValue() {}
func (Mapping) isValue()  {}

// KeyBatch groups signal-key writes by category then key identifier.
// A nil Value is a deletion marker.
type KeyBatch map[string]map[string]Value

// Get returns the child stored under key when v is a Mapping.
func Get(v Value, key string) (Value, bool) {
	m, ok := v.(Mapping)
	if !ok {
		return nil, false
	}
	child, ok := m[key]
	return child, ok
}

// Equal compares two trees structurally. Binary nodes compare by content.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil, Null:
		switch b.(type) {
		case nil, Null:
			return true
		}
		return false
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Number:
		y, ok := b.(Number)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case Binary:
		y, ok := b.(Binary)
		return ok && bytes.Equal(x, y)
	case Sequence:
		y, ok := b.(Sequence)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Mapping:
		y, ok := b.(Mapping)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, found := y[k]
			if !found || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}
