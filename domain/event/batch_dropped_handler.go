package event

import (
	"chat-ingest/errors"
	"log/slog"
)

// BatchDroppedHandler counts batches lost to a full ingestion queue.
type BatchDroppedHandler struct {
	log     *slog.Logger
	counter *Counter
}

func NewBatchDroppedHandler(log *slog.Logger, counter *Counter) *BatchDroppedHandler {
	return &BatchDroppedHandler{log: log, counter: counter}
}

func (h *BatchDroppedHandler) Handle(event Event) {
	switch event.Type {
	case BatchDroppedType:
		payload, ok := event.Payload.(BatchDropped)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.counter.Increment(BatchDroppedType)
		h.log.Warn("Ingestion batches dropped so far", "total", h.counter.Get(BatchDroppedType),
			"last_batch", payload.BatchID, "events", payload.Events)
	}
}
