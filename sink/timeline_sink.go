package sink

import (
	"chat-ingest/domain"
	"context"
	"sync"
)

// Timeline holds the most recent ingested messages, newest last.
type Timeline struct {
	mu       sync.Mutex
	size     int
	messages []domain.Message
}

func NewTimeline(size int) *Timeline {
	return &Timeline{size: size}
}

func (t *Timeline) Consume(_ context.Context, msg domain.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	if overflow := len(t.messages) - t.size; overflow > 0 {
		t.messages = append(t.messages[:0:0], t.messages[overflow:]...)
	}
	return nil
}

func (t *Timeline) Recent() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.Message(nil), t.messages...)
}
