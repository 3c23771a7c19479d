// Package domain contains the core concepts of the ingestion system.
// This file defines the canonical Message record persisted for every
// remote message, whatever payload variant it was delivered with.
package domain

import "time"

type MessageType string

const (
	TextType     MessageType = "text"
	ImageType    MessageType = "image"
	VideoType    MessageType = "video"
	AudioType    MessageType = "audio"
	StickerType  MessageType = "sticker"
	DocumentType MessageType = "document"
	OtherType    MessageType = "other"
)

// MessageTypes lists every accepted MessageType.
var MessageTypes = []MessageType{
	TextType, ImageType, VideoType, AudioType, StickerType, DocumentType, OtherType,
}

func (t MessageType) Valid() bool {
	for _, known := range MessageTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Message is the canonical record of one remote message.
// Processed only ever moves from false to true. CreatedAt is assigned by
// the repository on insertion and never changes afterward.
type Message struct {
	ID             string      `validate:"required"`
	From           *string     `validate:"omitempty,min=1"`
	To             *string     `validate:"omitempty,min=1"`
	ConversationID string      `validate:"required"`
	Timestamp      time.Time   `validate:"required"`
	Content        string
	Type           MessageType `validate:"required,oneof=text image video audio sticker document other"`
	IsOutbound     bool
	IsGroup        bool
	Processed      bool
	CreatedAt      time.Time
}
