package workers

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Normalizer interface {
	Normalize(raw domain.RawEvent, self string) (domain.Message, bool)
}

// IngestionWorker is the single consumer of the BatchQueue. Each batch is
// expanded into events, normalized, and handed to every sink in order.
// A failing sink is logged and never stops the drain.
type IngestionWorker struct {
	log         *slog.Logger
	queue       *BatchQueue
	normalizer  Normalizer
	sinks       []contract.EventSink
	sinkTimeout time.Duration
}

func NewIngestionWorker(log *slog.Logger, queue *BatchQueue, normalizer Normalizer,
	sinkTimeout time.Duration, sinks ...contract.EventSink) *IngestionWorker {
	return &IngestionWorker{
		log:         log,
		queue:       queue,
		normalizer:  normalizer,
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
	}
}

func (w *IngestionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping ingestion")
			return nil
		case batch := <-w.queue.Batches():
			w.Process(ctx, batch)
		}
	}
}

// Process normalizes and forwards one batch, in arrival order.
func (w *IngestionWorker) Process(ctx context.Context, batch domain.RawBatch) {
	accepted := 0
	for _, raw := range batch.Events {
		msg, ok := w.normalizer.Normalize(raw, batch.Self)
		if !ok {
			continue
		}
		accepted++
		w.fanout(ctx, msg)
	}
	w.log.Debug("Batch ingested", "batch_id", batch.ID, "events", len(batch.Events), "accepted", accepted)
}

// fanout One sink after the other for each message
func (w *IngestionWorker) fanout(ctx context.Context, msg domain.Message) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, msg); err != nil {
			w.log.Error("Sink failed to consume message",
				"sink", fmt.Sprintf("%T", sink), "id", msg.ID, "error", err)
		}
		cancel()
	}
}
