package workers

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	"chat-ingest/domain/event"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	outboundArrow = "→"
	inboundArrow  = "←"
	ellipsis      = "..."
)

// ReconcilerWorker periodically sweeps unprocessed messages: each one is
// summarized in the log then marked processed. Sweeps never overlap, a
// tick arriving during a sweep is skipped.
type ReconcilerWorker struct {
	log             *slog.Logger
	repository      contract.IMessageRepository
	interval        time.Duration
	summaryMaxChars int
	telemetryChan   chan event.Event
}

func NewReconcilerWorker(log *slog.Logger, repository contract.IMessageRepository,
	interval time.Duration, summaryMaxChars int, telemetryChan chan event.Event) *ReconcilerWorker {
	return &ReconcilerWorker{
		log:             log,
		repository:      repository,
		interval:        interval,
		summaryMaxChars: summaryMaxChars,
		telemetryChan:   telemetryChan,
	}
}

func (w *ReconcilerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping reconciliation")
			return nil
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one reconciliation pass. Errors are logged and reported in the
// returned summary, never propagated.
func (w *ReconcilerWorker) Sweep(ctx context.Context) event.SweepCompleted {
	start := time.Now()
	result := event.SweepCompleted{SweepID: uuid.New()}
	defer func() {
		result.Duration = time.Since(start)
		w.report(result)
	}()

	pending, err := w.repository.ListUnprocessed(ctx)
	if err != nil {
		result.Err = err
		w.log.Error("Reconciliation sweep failed", "sweep_id", result.SweepID, "error", err)
		return result
	}
	result.Found = len(pending)
	if len(pending) == 0 {
		w.log.Debug("Reconciliation sweep: nothing to process", "sweep_id", result.SweepID)
		return result
	}

	for _, msg := range pending {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			return result
		}
		w.log.Info(Summary(msg, w.summaryMaxChars), "id", msg.ID)
		if err := w.repository.MarkProcessed(ctx, msg.ID); err != nil {
			result.Failed++
			w.log.Error("Failed to mark message processed", "id", msg.ID, "error", err)
			continue
		}
		result.Marked++
	}
	w.log.Info("Reconciliation sweep done", "sweep_id", result.SweepID,
		"found", result.Found, "marked", result.Marked, "failed", result.Failed)
	return result
}

func (w *ReconcilerWorker) report(result event.SweepCompleted) {
	select {
	case w.telemetryChan <- event.New(event.SweepCompletedType, result):
	default:
		w.log.Debug("Observability telemetry event lost")
	}
}

// Summary renders a message on one line, for instance
// "← [text] 33611111111 -> 33600000000: hello".
func Summary(msg domain.Message, maxChars int) string {
	arrow := inboundArrow
	if msg.IsOutbound {
		arrow = outboundArrow
	}
	return fmt.Sprintf("%s [%s] %s -> %s: %s",
		arrow, msg.Type, orUnknown(msg.From), orUnknown(msg.To), truncate(msg.Content, maxChars))
}

func truncate(content string, maxChars int) string {
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + ellipsis
}

func orUnknown(number *string) string {
	if number == nil {
		return "unknown"
	}
	return *number
}
