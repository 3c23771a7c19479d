package workers

import (
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"chat-ingest/session"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

type Connector interface {
	Connect(ctx context.Context) (*session.Handle, error)
}

// SessionWorker keeps one connection alive and feeds its batches to the
// BatchQueue. A drop leads to a new Connect; a terminal connection error is
// returned so the supervisor stops the process.
type SessionWorker struct {
	log       *slog.Logger
	connector Connector
	queue     *BatchQueue
}

func NewSessionWorker(log *slog.Logger, connector Connector, queue *BatchQueue) *SessionWorker {
	return &SessionWorker{log: log, connector: connector, queue: queue}
}

func (w *SessionWorker) Run(ctx context.Context) error {
	for {
		handle, err := w.connector.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		dropErr := w.serve(ctx, handle)
		if dropErr == nil {
			return nil
		}
		if errors.Is(dropErr, customErrors.ErrLoggedOut) {
			return fmt.Errorf("%w: %w", customErrors.ErrConnection, dropErr)
		}
		w.log.Warn("Connection dropped, reconnecting", "error", dropErr)
	}
}

// serve pumps batches until the connection drops or ctx is done. The handle
// is always closed on return.
func (w *SessionWorker) serve(ctx context.Context, handle *session.Handle) error {
	defer func() {
		if err := handle.Close(); err != nil {
			w.log.Warn("Failed to close connection", "error", err)
		}
	}()

	unsubscribe := handle.Subscribe(func(batch domain.RawBatch) {
		w.queue.Offer(batch)
	})
	defer unsubscribe()

	w.log.Info("Ingesting messages", "self", handle.Self())
	select {
	case <-ctx.Done():
		return nil
	case <-handle.Done():
		return handle.Err()
	}
}
