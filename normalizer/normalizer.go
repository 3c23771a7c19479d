// Package normalizer turns raw remote events into canonical Message records.
package normalizer

import (
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// Placeholders stored as content when a payload carries no readable text.
// Downstream display code matches on these exact strings.
const (
	ImagePlaceholder       = "[Image]"
	VideoPlaceholder       = "[Video]"
	AudioPlaceholder       = "[Audio]"
	StickerPlaceholder     = "[Sticker]"
	DocumentPlaceholder    = "[Document]"
	UnsupportedPlaceholder = "[Unsupported]"
)

type Normalizer struct {
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

func NewNormalizer(log *slog.Logger) *Normalizer {
	return &Normalizer{
		log:      log,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Normalize maps one raw event to a Message. ok is false when the event
// cannot be persisted meaningfully; the reason is logged, never returned.
func (n *Normalizer) Normalize(raw domain.RawEvent, self string) (msg domain.Message, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("Normalization panicked", "id", raw.Key.ID,
				"error", fmt.Errorf("%w: %v", customErrors.ErrNormalization, r))
			msg, ok = domain.Message{}, false
		}
	}()

	if raw.Key.ID == "" || raw.Key.RemoteJID == "" {
		n.log.Debug("Event skipped, no stable identifier", "id", raw.Key.ID, "conversation", raw.Key.RemoteJID)
		return domain.Message{}, false
	}

	conversation := raw.Key.RemoteJID
	isGroup := domain.IsGroupConversation(conversation)
	content, msgType := extract(raw.Message)

	msg = domain.Message{
		ID:             raw.Key.ID,
		ConversationID: conversation,
		Timestamp:      n.timestamp(raw.MessageTimestamp),
		Content:        content,
		Type:           msgType,
		IsOutbound:     raw.Key.FromMe,
		IsGroup:        isGroup,
	}
	switch {
	case raw.Key.FromMe:
		msg.From, msg.To = number(self), number(conversation)
	case isGroup:
		msg.From, msg.To = number(raw.Key.Participant), number(self)
	default:
		msg.From, msg.To = number(conversation), number(self)
	}

	if err := n.validate.Struct(msg); err != nil {
		n.log.Warn("Event skipped, invalid record", "id", raw.Key.ID,
			"error", fmt.Errorf("%w: %w", customErrors.ErrNormalization, err))
		return domain.Message{}, false
	}
	return msg, true
}

func (n *Normalizer) timestamp(seconds int64) time.Time {
	if seconds <= 0 {
		return n.now()
	}
	return time.Unix(seconds, 0).UTC()
}

// extract picks content and type from the first payload variant present.
func extract(p *domain.Payload) (string, domain.MessageType) {
	switch {
	case p == nil:
		return UnsupportedPlaceholder, domain.OtherType
	case p.Conversation != nil:
		return *p.Conversation, domain.TextType
	case p.ExtendedText != nil:
		return p.ExtendedText.Text, domain.TextType
	case p.Image != nil:
		return lo.CoalesceOrEmpty(p.Image.Caption, ImagePlaceholder), domain.ImageType
	case p.Video != nil:
		return lo.CoalesceOrEmpty(p.Video.Caption, VideoPlaceholder), domain.VideoType
	case p.Audio != nil:
		return lo.CoalesceOrEmpty(p.Audio.Caption, AudioPlaceholder), domain.AudioType
	case p.Sticker != nil:
		return StickerPlaceholder, domain.StickerType
	case p.Document != nil:
		return lo.CoalesceOrEmpty(p.Document.Caption, p.Document.FileName, DocumentPlaceholder), domain.DocumentType
	default:
		return UnsupportedPlaceholder, domain.OtherType
	}
}

// number reduces an identifier to its canonical number; empty means unknown.
func number(jid string) *string {
	n := domain.CanonicalNumber(jid)
	if n == "" {
		return nil
	}
	return &n
}
