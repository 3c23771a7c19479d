package authstate

import (
	"bytes"
	customErrors "chat-ingest/errors"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	// BinaryTag marks an object holding base64 encoded bytes.
	BinaryTag = "binary"
	// MappingTag escapes a plain mapping that would otherwise look like a tagged object.
	MappingTag = "$map"
)

// Encode serializes a blob to JSON text. Every Binary node becomes
// {"binary": "<base64>"}; sequences and mappings are walked recursively;
// scalars pass through. Strings and keys must be valid UTF-8 and numbers
// non-empty literals, anything else would not decode to the same value.
func Encode(v Value) (string, error) {
	raw, err := EncodeJSON(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// EncodeJSON is Encode for callers embedding the blob in a larger JSON document.
func EncodeJSON(v Value) (json.RawMessage, error) {
	tree, err := toTree(v)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode auth value: %w", err)
	}
	return raw, nil
}

// Decode parses text produced by Encode back into a blob.
func Decode(text string) (Value, error) {
	return DecodeJSON(json.RawMessage(text))
}

func DecodeJSON(raw json.RawMessage) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode auth value: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode auth value: trailing data")
	}
	return fromTree(tree)
}

func toTree(v Value) (any, error) {
	switch t := v.(type) {
	case nil, Null:
		return nil, nil
	case Bool:
		return bool(t), nil
	case Number:
		// json.Marshal rejects other literals that are not numbers
		if t == "" {
			return nil, fmt.Errorf("%w: empty number", customErrors.ErrInvalidAuthValue)
		}
		return json.Number(t), nil
	case String:
		if !utf8.ValidString(string(t)) {
			return nil, fmt.Errorf("%w: string %q is not valid UTF-8, use Binary", customErrors.ErrInvalidAuthValue, string(t))
		}
		return string(t), nil
	case Binary:
		return map[string]any{BinaryTag: base64.StdEncoding.EncodeToString(t)}, nil
	case Sequence:
		out := make([]any, len(t))
		for i, item := range t {
			node, err := toTree(item)
			if err != nil {
				return nil, err
			}
			out[i] = node
		}
		return out, nil
	case Mapping:
		out := make(map[string]any, len(t))
		for k, item := range t {
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("%w: key %q is not valid UTF-8", customErrors.ErrInvalidAuthValue, k)
			}
			node, err := toTree(item)
			if err != nil {
				return nil, err
			}
			out[k] = node
		}
		if looksTagged(t) {
			return map[string]any{MappingTag: out}, nil
		}
		return out, nil
	default:
		return nil, fmt.Errorf("encode auth value: unsupported node %T", v)
	}
}

func fromTree(node any) (Value, error) {
	switch t := node.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case string:
		return String(t), nil
	case []any:
		out := make(Sequence, len(t))
		for i, item := range t {
			v, err := fromTree(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case map[string]any:
		if len(t) == 1 {
			if encoded, ok := t[BinaryTag].(string); ok {
				b, err := base64.StdEncoding.DecodeString(encoded)
				if err != nil {
					return nil, fmt.Errorf("decode auth value: binary node: %w", err)
				}
				return Binary(b), nil
			}
			if inner, ok := t[MappingTag].(map[string]any); ok {
				return fromObject(inner)
			}
		}
		return fromObject(t)
	default:
		return nil, fmt.Errorf("decode auth value: unsupported node %T", node)
	}
}

func fromObject(obj map[string]any) (Value, error) {
	out := make(Mapping, len(obj))
	for k, item := range obj {
		v, err := fromTree(item)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// looksTagged reports whether a plain mapping has the shape of a tagged object.
func looksTagged(m Mapping) bool {
	if len(m) != 1 {
		return false
	}
	_, binary := m[BinaryTag]
	_, mapping := m[MappingTag]
	return binary || mapping
}
