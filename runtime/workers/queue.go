package workers

import (
	"chat-ingest/domain"
	"chat-ingest/domain/event"
	"log/slog"
	"sync/atomic"
)

// BatchQueue is the bounded buffer between the transport callback and the
// ingestion consumer. Offer never blocks: a batch arriving on a full queue
// is dropped.
type BatchQueue struct {
	log           *slog.Logger
	batches       chan domain.RawBatch
	telemetryChan chan event.Event
	dropped       atomic.Int64
}

func NewBatchQueue(log *slog.Logger, capacity int, telemetryChan chan event.Event) *BatchQueue {
	return &BatchQueue{
		log:           log,
		batches:       make(chan domain.RawBatch, capacity),
		telemetryChan: telemetryChan,
	}
}

// Offer enqueues batch and reports whether it was accepted.
func (q *BatchQueue) Offer(batch domain.RawBatch) bool {
	select {
	case q.batches <- batch:
		return true
	default:
	}

	q.dropped.Add(1)
	q.log.Warn("Ingestion queue full, batch dropped",
		"batch_id", batch.ID, "events", len(batch.Events), "length", q.Len(), "capacity", q.Cap())
	select {
	case q.telemetryChan <- event.New(event.BatchDroppedType, event.BatchDropped{
		BatchID: batch.ID, Events: len(batch.Events), Length: q.Len(),
	}):
	default:
		q.log.Debug("Observability telemetry event lost")
	}
	return false
}

func (q *BatchQueue) Batches() <-chan domain.RawBatch {
	return q.batches
}

// Dropped counts every batch rejected so far, telemetry losses included.
func (q *BatchQueue) Dropped() int64 { return q.dropped.Load() }

func (q *BatchQueue) Len() int { return len(q.batches) }

func (q *BatchQueue) Cap() int { return cap(q.batches) }

// Named exposes the queue to the ChannelCapacityWorker.
func (q *BatchQueue) Named(name string) NamedChannel {
	return NamedChannel{Name: name, Channel: q.batches}
}
