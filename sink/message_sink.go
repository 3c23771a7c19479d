package sink

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	"context"
	"log/slog"
)

// MessageSink persists every normalized message through the repository.
type MessageSink struct {
	repository contract.IMessageRepository
	log        *slog.Logger
}

func NewMessageSink(repository contract.IMessageRepository, log *slog.Logger) MessageSink {
	return MessageSink{repository: repository, log: log}
}

func (d MessageSink) Consume(ctx context.Context, msg domain.Message) error {
	if err := d.repository.Insert(ctx, msg); err != nil {
		d.log.Error("Failed to persist message", "id", msg.ID, "conversation", msg.ConversationID, "error", err)
		return err
	}
	d.log.Debug("Message persisted", "id", msg.ID, "type", msg.Type)
	return nil
}
