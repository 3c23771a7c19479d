package event

import (
	"chat-ingest/errors"
	"log/slog"
	"sync"
	"time"
)

// ReconcileStats accumulates reconciliation outcomes.
type ReconcileStats struct {
	Sweeps     int       `json:"sweeps"`
	Idle       int       `json:"idle"`
	Marked     int       `json:"marked"`
	Failures   int       `json:"failures"`
	LastSweep  time.Time `json:"lastSweep"`
	LastFailed string    `json:"lastFailure,omitempty"`
}

// SweepCompletedHandler folds every SweepCompleted event into ReconcileStats.
type SweepCompletedHandler struct {
	log   *slog.Logger
	mu    sync.Mutex
	stats ReconcileStats
}

func NewSweepCompletedHandler(log *slog.Logger) *SweepCompletedHandler {
	return &SweepCompletedHandler{log: log}
}

func (h *SweepCompletedHandler) Handle(event Event) {
	switch event.Type {
	case SweepCompletedType:
		payload, ok := event.Payload.(SweepCompleted)
		if !ok {
			h.log.Error(errors.ErrInvalidPayload.Error())
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.stats.Sweeps++
		h.stats.LastSweep = event.CreatedAt
		h.stats.Marked += payload.Marked
		h.stats.Failures += payload.Failed
		if payload.Found == 0 && payload.Err == nil {
			h.stats.Idle++
		}
		if payload.Err != nil {
			h.stats.Failures++
			h.stats.LastFailed = payload.Err.Error()
		}
	}
}

// Stats returns a snapshot.
func (h *SweepCompletedHandler) Stats() ReconcileStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}
