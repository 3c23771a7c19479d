package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	RestartedAfterPanicType Type = "WORKER_RESTARTED_AFTER_PANIC"
	ChannelCapacityType     Type = "CHANNEL_CAPACITY"
	BatchDroppedType        Type = "BATCH_DROPPED"
	SweepCompletedType      Type = "SWEEP_COMPLETED"
)

type WorkerRestartedAfterPanic struct {
	WorkerName string
}

type ChannelCapacity struct {
	ChannelName string
	Capacity    int
	Length      int
}

// BatchDropped is emitted when the ingestion queue was full.
type BatchDropped struct {
	BatchID uuid.UUID
	Events  int
	Length  int
}

// SweepCompleted summarizes one reconciliation sweep. Err is set when the sweep aborted.
type SweepCompleted struct {
	SweepID  uuid.UUID
	Found    int
	Marked   int
	Failed   int
	Duration time.Duration
	Err      error
}
