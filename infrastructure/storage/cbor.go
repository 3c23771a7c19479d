package storage

import (
	"chat-ingest/domain"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so the same record always
// produces the same bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}
}

// storedMessage is the badger value of a message. Times are kept as
// nanoseconds so no precision is lost.
type storedMessage struct {
	ID             string  `cbor:"1,keyasint"`
	From           *string `cbor:"2,keyasint,omitempty"`
	To             *string `cbor:"3,keyasint,omitempty"`
	ConversationID string  `cbor:"4,keyasint"`
	Timestamp      int64   `cbor:"5,keyasint"`
	Content        string  `cbor:"6,keyasint"`
	Type           string  `cbor:"7,keyasint"`
	IsOutbound     bool    `cbor:"8,keyasint"`
	IsGroup        bool    `cbor:"9,keyasint"`
	Processed      bool    `cbor:"10,keyasint"`
	CreatedAt      int64   `cbor:"11,keyasint"`
}

func marshalMessage(m domain.Message) ([]byte, error) {
	return encMode.Marshal(storedMessage{
		ID:             m.ID,
		From:           m.From,
		To:             m.To,
		ConversationID: m.ConversationID,
		Timestamp:      m.Timestamp.UnixNano(),
		Content:        m.Content,
		Type:           string(m.Type),
		IsOutbound:     m.IsOutbound,
		IsGroup:        m.IsGroup,
		Processed:      m.Processed,
		CreatedAt:      m.CreatedAt.UnixNano(),
	})
}

func unmarshalMessage(data []byte) (domain.Message, error) {
	var s storedMessage
	if err := decMode.Unmarshal(data, &s); err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:             s.ID,
		From:           s.From,
		To:             s.To,
		ConversationID: s.ConversationID,
		Timestamp:      time.Unix(0, s.Timestamp).UTC(),
		Content:        s.Content,
		Type:           domain.MessageType(s.Type),
		IsOutbound:     s.IsOutbound,
		IsGroup:        s.IsGroup,
		Processed:      s.Processed,
		CreatedAt:      time.Unix(0, s.CreatedAt).UTC(),
	}, nil
}
