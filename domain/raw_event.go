package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageKey addresses a message on the remote service.
type MessageKey struct {
	ID          string `json:"id"`
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	Participant string `json:"participant,omitempty"`
}

// RawEvent is a message as delivered by the remote service, before normalization.
// Timestamp is expressed in seconds since the epoch and may be zero.
type RawEvent struct {
	Key              MessageKey `json:"key"`
	MessageTimestamp int64      `json:"messageTimestamp,omitempty"`
	PushName         string     `json:"pushName,omitempty"`
	Message          *Payload   `json:"message,omitempty"`
}

// Payload holds the content variants a remote message may carry.
// At most one variant is expected to be set, but nothing enforces it.
type Payload struct {
	Conversation *string       `json:"conversation,omitempty"`
	ExtendedText *ExtendedText `json:"extendedTextMessage,omitempty"`
	Image        *Media        `json:"imageMessage,omitempty"`
	Video        *Media        `json:"videoMessage,omitempty"`
	Audio        *Media        `json:"audioMessage,omitempty"`
	Sticker      *Media        `json:"stickerMessage,omitempty"`
	Document     *Document     `json:"documentMessage,omitempty"`
}

type ExtendedText struct {
	Text string `json:"text"`
}

type Media struct {
	Caption  string `json:"caption,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

type Document struct {
	Caption  string `json:"caption,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Mimetype string `json:"mimetype,omitempty"`
}

// RawBatch is one push delivery from the transport.
// Self is the local identity the connection was authenticated as when the batch arrived.
type RawBatch struct {
	ID         uuid.UUID
	Self       string
	Events     []RawEvent
	ReceivedAt time.Time
}

func NewRawBatch(self string, events []RawEvent, receivedAt time.Time) RawBatch {
	return RawBatch{ID: uuid.New(), Self: self, Events: events, ReceivedAt: receivedAt}
}
