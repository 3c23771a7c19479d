package event

import (
	"chat-ingest/errors"
	"log/slog"
	"sync"
)

// ChannelCapacityHandler watches capacity samples of the ingestion queue.
// It warns once when the free slots fall to lowCapacityThreshold or below,
// since a full queue drops incoming batches, and reports when it drains again.
type ChannelCapacityHandler struct {
	log                  *slog.Logger
	lowCapacityThreshold int

	mu         sync.Mutex
	saturating map[string]bool
}

func NewChannelCapacityHandler(log *slog.Logger, lowCapacityThreshold int) *ChannelCapacityHandler {
	return &ChannelCapacityHandler{
		log:                  log,
		lowCapacityThreshold: lowCapacityThreshold,
		saturating:           make(map[string]bool),
	}
}

func (h *ChannelCapacityHandler) Handle(event Event) {
	if event.Type != ChannelCapacityType {
		return
	}
	payload, ok := event.Payload.(ChannelCapacity)
	if !ok {
		h.log.Error(errors.ErrInvalidPayload.Error(), "event", event.Type)
		return
	}
	h.log.Debug("Queue usage", "queue", payload.ChannelName, "length", payload.Length, "capacity", payload.Capacity)
	if payload.Capacity <= 0 {
		return
	}

	free := payload.Capacity - payload.Length
	low := free <= h.lowCapacityThreshold

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case low && !h.saturating[payload.ChannelName]:
		h.log.Warn("Queue almost full, new batches will be dropped when it is",
			"queue", payload.ChannelName, "free", free, "capacity", payload.Capacity)
	case !low && h.saturating[payload.ChannelName]:
		h.log.Info("Queue drained", "queue", payload.ChannelName, "free", free, "capacity", payload.Capacity)
	}
	h.saturating[payload.ChannelName] = low
}

// Saturating reports whether the last sample of queue was under the threshold.
func (h *ChannelCapacityHandler) Saturating(queue string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saturating[queue]
}
