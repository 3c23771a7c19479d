package event

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func bufferedLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestChannelCapacityHandler_WarnsOnceWhenAlmostFull(t *testing.T) {
	req := require.New(t)
	log, buf := bufferedLogger()
	handler := NewChannelCapacityHandler(log, 2)
	sample := func(length int) {
		handler.Handle(New(ChannelCapacityType, ChannelCapacity{ChannelName: "ingestion", Capacity: 10, Length: length}))
	}

	// When the queue fills up to its last slots, then completely
	sample(5)
	req.False(handler.Saturating("ingestion"))
	sample(8)
	sample(10)

	// Then a single warning is logged, a full queue included
	req.True(handler.Saturating("ingestion"))
	req.Equal(1, strings.Count(buf.String(), "Queue almost full"))

	// When it drains
	sample(1)

	// Then the recovery is reported
	req.False(handler.Saturating("ingestion"))
	req.Contains(buf.String(), "Queue drained")
}

func TestChannelCapacityHandler_IgnoresOtherEvents(t *testing.T) {
	req := require.New(t)
	log, buf := bufferedLogger()
	handler := NewChannelCapacityHandler(log, 2)

	handler.Handle(New(RestartedAfterPanicType, WorkerRestartedAfterPanic{WorkerName: "x"}))
	handler.Handle(New(ChannelCapacityType, "not a sample"))

	req.NotContains(buf.String(), "Queue")
	req.Contains(buf.String(), "invalid event payload")
}

func TestWorkerRestartedAfterPanicHandler_Counts(t *testing.T) {
	req := require.New(t)
	log, buf := bufferedLogger()
	counter := NewCounter()
	handler := NewWorkerRestartedAfterPanicHandler(log, counter)

	for i := 0; i < 3; i++ {
		handler.Handle(New(RestartedAfterPanicType, WorkerRestartedAfterPanic{WorkerName: "*workers.IngestionWorker"}))
	}

	req.Equal(3, counter.Get(RestartedAfterPanicType))
	req.Contains(buf.String(), "level=WARN")
	req.Contains(buf.String(), "restarts=3")
}

func TestBatchDroppedHandler_Counts(t *testing.T) {
	req := require.New(t)
	log, _ := bufferedLogger()
	counter := NewCounter()
	handler := NewBatchDroppedHandler(log, counter)

	handler.Handle(New(BatchDroppedType, BatchDropped{BatchID: uuid.New(), Events: 4, Length: 10}))
	handler.Handle(New(ChannelCapacityType, ChannelCapacity{}))

	req.Equal(1, counter.Get(BatchDroppedType))
}
