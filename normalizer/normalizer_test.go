package normalizer

import (
	"chat-ingest/domain"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const self = "33600000000:7@s.whatsapp.net"

func newTestNormalizer() *Normalizer {
	n := NewNormalizer(logs.GetLoggerFromLevel(slog.LevelDebug))
	n.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func ptr(s string) *string { return &s }

func TestNormalize_InboundDirectText(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	// Given an inbound text in a direct conversation
	raw := domain.RawEvent{
		Key:              domain.MessageKey{ID: "A1", RemoteJID: "33611111111@s.whatsapp.net"},
		MessageTimestamp: 1700000000,
		Message:          &domain.Payload{Conversation: ptr("hello")},
	}

	// When normalizing
	msg, ok := n.Normalize(raw, self)

	// Then sender is the conversation and recipient the local identity
	req.True(ok)
	req.Equal("A1", msg.ID)
	req.Equal("33611111111", *msg.From)
	req.Equal("33600000000", *msg.To)
	req.Equal("33611111111@s.whatsapp.net", msg.ConversationID)
	req.Equal(time.Unix(1700000000, 0).UTC(), msg.Timestamp)
	req.Equal("hello", msg.Content)
	req.Equal(domain.TextType, msg.Type)
	req.False(msg.IsOutbound)
	req.False(msg.IsGroup)
	req.False(msg.Processed)
}

func TestNormalize_OutboundImageWithoutCaption(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	raw := domain.RawEvent{
		Key:              domain.MessageKey{ID: "B2", RemoteJID: "33622222222@s.whatsapp.net", FromMe: true},
		MessageTimestamp: 1700000100,
		Message:          &domain.Payload{Image: &domain.Media{Mimetype: "image/jpeg"}},
	}

	msg, ok := n.Normalize(raw, self)

	req.True(ok)
	req.Equal("33600000000", *msg.From)
	req.Equal("33622222222", *msg.To)
	req.Equal("[Image]", msg.Content)
	req.Equal(domain.ImageType, msg.Type)
	req.True(msg.IsOutbound)
}

func TestNormalize_InboundGroupUsesParticipant(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	raw := domain.RawEvent{
		Key: domain.MessageKey{
			ID:          "G1",
			RemoteJID:   "120363000000000000@g.us",
			Participant: "33633333333:2@s.whatsapp.net",
		},
		MessageTimestamp: 1700000200,
		Message:          &domain.Payload{ExtendedText: &domain.ExtendedText{Text: "see https://example.org"}},
	}

	msg, ok := n.Normalize(raw, self)

	req.True(ok)
	req.True(msg.IsGroup)
	req.Equal("33633333333", *msg.From)
	req.Equal("33600000000", *msg.To)
	req.Equal("see https://example.org", msg.Content)
	req.Equal(domain.TextType, msg.Type)
}

func TestNormalize_GroupWithoutParticipantHasNoSender(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	raw := domain.RawEvent{
		Key:     domain.MessageKey{ID: "G2", RemoteJID: "120363000000000000@g.us"},
		Message: &domain.Payload{Conversation: ptr("hi")},
	}

	msg, ok := n.Normalize(raw, self)

	req.True(ok)
	req.Nil(msg.From)
	req.Equal("33600000000", *msg.To)
}

func TestNormalize_MissingIdentifiers(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()
	text := &domain.Payload{Conversation: ptr("x")}

	_, ok := n.Normalize(domain.RawEvent{Key: domain.MessageKey{RemoteJID: "33611111111@s.whatsapp.net"}, Message: text}, self)
	req.False(ok)

	_, ok = n.Normalize(domain.RawEvent{Key: domain.MessageKey{ID: "A1"}, Message: text}, self)
	req.False(ok)
}

func TestNormalize_MissingTimestampUsesClock(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	msg, ok := n.Normalize(domain.RawEvent{
		Key:     domain.MessageKey{ID: "A1", RemoteJID: "33611111111@s.whatsapp.net"},
		Message: &domain.Payload{Conversation: ptr("x")},
	}, self)

	req.True(ok)
	req.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestNormalize_UnknownLocalIdentity(t *testing.T) {
	req := require.New(t)
	n := newTestNormalizer()

	msg, ok := n.Normalize(domain.RawEvent{
		Key:     domain.MessageKey{ID: "A1", RemoteJID: "33611111111@s.whatsapp.net"},
		Message: &domain.Payload{Conversation: ptr("x")},
	}, "")

	req.True(ok)
	req.Nil(msg.To)
}

func TestExtract_Variants(t *testing.T) {
	tests := []struct {
		name     string
		payload  *domain.Payload
		content  string
		expected domain.MessageType
	}{
		{"no payload", nil, "[Unsupported]", domain.OtherType},
		{"empty payload", &domain.Payload{}, "[Unsupported]", domain.OtherType},
		{"plain text wins over image", &domain.Payload{Conversation: ptr("t"), Image: &domain.Media{Caption: "c"}}, "t", domain.TextType},
		{"image caption", &domain.Payload{Image: &domain.Media{Caption: "sunset"}}, "sunset", domain.ImageType},
		{"video", &domain.Payload{Video: &domain.Media{}}, "[Video]", domain.VideoType},
		{"audio", &domain.Payload{Audio: &domain.Media{Mimetype: "audio/ogg"}}, "[Audio]", domain.AudioType},
		{"sticker", &domain.Payload{Sticker: &domain.Media{}}, "[Sticker]", domain.StickerType},
		{"document caption", &domain.Payload{Document: &domain.Document{Caption: "invoice", FileName: "a.pdf"}}, "invoice", domain.DocumentType},
		{"document file name", &domain.Payload{Document: &domain.Document{FileName: "a.pdf"}}, "a.pdf", domain.DocumentType},
		{"document bare", &domain.Payload{Document: &domain.Document{}}, "[Document]", domain.DocumentType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, msgType := extract(tt.payload)
			req.Equal(tt.content, content)
			req.Equal(tt.expected, msgType)
		})
	}
}
