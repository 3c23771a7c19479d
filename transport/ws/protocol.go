// Package ws bridges the session to a messaging gateway over a websocket.
// Every frame is a JSON object discriminated by its "type" field.
package ws

import (
	"chat-ingest/authstate"
	"chat-ingest/domain"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Frame types sent by the client.
const (
	TypeHello      = "hello"
	TypeKeysResult = "keys.result"
	TypeAck        = "ack"
)

// Frame types sent by the gateway.
const (
	TypeConnectionUpdate = "connection.update"
	TypeCredsUpdate      = "creds.update"
	TypeMessagesUpsert   = "messages.upsert"
	TypeKeysGet          = "keys.get"
	TypeKeysSet          = "keys.set"
)

// Frame is the union of every frame of the protocol. Auth values travel in
// their tagged JSON form so binary material survives the trip.
type Frame struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	domain.ConnectionUpdate

	Creds    json.RawMessage   `json:"creds,omitempty"`
	Messages []domain.RawEvent `json:"messages,omitempty"`
	Category string            `json:"category,omitempty"`
	IDs      []string          `json:"ids,omitempty"`
	Keys     json.RawMessage   `json:"keys,omitempty"`
	Batch    json.RawMessage   `json:"batch,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// EncodeKeys renders a key lookup result as one tagged mapping.
func EncodeKeys(keys map[string]authstate.Value) (json.RawMessage, error) {
	return authstate.EncodeJSON(authstate.Mapping(keys))
}

// EncodeBatch renders a key batch. A deleted key is sent as null.
func EncodeBatch(batch authstate.KeyBatch) (json.RawMessage, error) {
	outer := authstate.Mapping{}
	for category, entries := range batch {
		outer[category] = authstate.Mapping(lo.MapValues(entries, func(v authstate.Value, _ string) authstate.Value {
			if v == nil {
				return authstate.Null{}
			}
			return v
		}))
	}
	return authstate.EncodeJSON(outer)
}

// DecodeBatch is the inverse of EncodeBatch: null entries become deletions.
func DecodeBatch(raw json.RawMessage) (authstate.KeyBatch, error) {
	v, err := authstate.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	outer, ok := v.(authstate.Mapping)
	if !ok {
		return nil, fmt.Errorf("key batch: expected a mapping, got %T", v)
	}
	batch := make(authstate.KeyBatch, len(outer))
	for category, node := range outer {
		entries, ok := node.(authstate.Mapping)
		if !ok {
			return nil, fmt.Errorf("key batch: category %q is not a mapping", category)
		}
		batch[category] = lo.MapValues(entries, func(v authstate.Value, _ string) authstate.Value {
			if _, deleted := v.(authstate.Null); deleted {
				return nil
			}
			return v
		})
	}
	return batch, nil
}

// DecodeKeys is the inverse of EncodeKeys.
func DecodeKeys(raw json.RawMessage) (map[string]authstate.Value, error) {
	v, err := authstate.DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	keys, ok := v.(authstate.Mapping)
	if !ok {
		return nil, fmt.Errorf("keys: expected a mapping, got %T", v)
	}
	return keys, nil
}
