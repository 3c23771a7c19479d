package session

import (
	"chat-ingest/authstate"
	"chat-ingest/contract"
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"context"
	"fmt"
	"sync"
	"time"
)

// BatchListener receives every message batch pushed by the transport.
// It runs on the transport goroutine and must return quickly.
type BatchListener func(batch domain.RawBatch)

// Handle is a live, authenticated transport. Close releases it: listeners are
// deregistered and the transport is ended, whatever the exit path.
type Handle struct {
	connector   *Connector
	transport   contract.Transport
	unsubscribe func()

	// deliverMu keeps batches in arrival order across Subscribe and OnMessages.
	deliverMu  sync.Mutex
	mu         sync.Mutex
	self       string
	listeners  map[int]BatchListener
	nextID     int
	subscribed bool
	backlog    []domain.RawBatch
	err        error

	opened   chan struct{}
	openOnce sync.Once
	done     chan struct{}
	doneOnce sync.Once

	pendingCreds chan authstate.Value
	writerDone   chan struct{}
	closeOnce    sync.Once
	closeErr     error
}

func newHandle(c *Connector, transport contract.Transport) *Handle {
	h := &Handle{
		connector:    c,
		transport:    transport,
		listeners:    make(map[int]BatchListener),
		opened:       make(chan struct{}),
		done:         make(chan struct{}),
		pendingCreds: make(chan authstate.Value, 1),
		writerDone:   make(chan struct{}),
	}
	go h.writeCredentials()
	h.unsubscribe = transport.Subscribe(h)
	return h
}

// Self is the local identity the remote service reported when the connection opened.
func (h *Handle) Self() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.self
}

// Done is closed when the connection ends, for any reason.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err tells why the connection ended. It is nil while the connection is live.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Subscribe registers a listener for message batches. The first listener
// also receives, in order, the batches that arrived before it.
func (h *Handle) Subscribe(listener BatchListener) (unsubscribe func()) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = listener
	var backlog []domain.RawBatch
	if !h.subscribed {
		h.subscribed = true
		backlog, h.backlog = h.backlog, nil
	}
	h.mu.Unlock()

	if len(backlog) > 0 {
		h.connector.log.Debug("Delivering batches received before subscription", "batches", len(backlog))
	}
	for _, batch := range backlog {
		listener(batch)
	}
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// Close deregisters every listener and ends the transport. It waits at most
// Policy.CredentialFlushTimeout for a pending credential write. Safe to call twice.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.unsubscribe()
		h.mu.Lock()
		clear(h.listeners)
		if len(h.backlog) > 0 {
			h.connector.log.Warn("Batches dropped, connection closed before any subscription",
				"batches", len(h.backlog))
		}
		h.backlog = nil
		h.subscribed = true
		h.mu.Unlock()

		h.closeErr = h.transport.End(nil)
		h.finish(fmt.Errorf("%w: closed locally", customErrors.ErrTransportClosed), false)

		select {
		case <-h.writerDone:
		case <-time.After(h.connector.policy.CredentialFlushTimeout):
			h.connector.log.Warn("Credential write still pending at close, not waiting")
		}
		if h.connector.State() == domain.Open {
			h.connector.setState(domain.Disconnected)
		}
	})
	return h.closeErr
}

// finish marks the connection as ended. remote is true when the end was not requested locally.
func (h *Handle) finish(err error, remote bool) {
	h.doneOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
		if remote {
			h.connector.dropped(err)
		}
	})
}

func (h *Handle) OnConnectionUpdate(update domain.ConnectionUpdate) {
	log := h.connector.log
	if update.HasPairingMaterial() && h.connector.presenter != nil {
		h.connector.presenter.Present(update)
	}

	switch update.Connection {
	case domain.PhaseConnecting:
		log.Debug("Transport connecting")
	case domain.PhaseOpen:
		h.mu.Lock()
		h.self = domain.CanonicalNumber(update.Me)
		h.mu.Unlock()
		h.openOnce.Do(func() {
			log.Info("Connection opened", "me", update.Me)
			close(h.opened)
		})
	case domain.PhaseClose:
		err := fmt.Errorf("%w: %s", customErrors.ErrTransportClosed, update.Reason)
		if update.LoggedOut {
			err = fmt.Errorf("%w: %s", customErrors.ErrLoggedOut, update.Reason)
		}
		log.Warn("Connection closed by the remote side", "reason", update.Reason, "logged_out", update.LoggedOut)
		h.finish(err, true)
	}
}

// OnCredentialsChanged hands the new credentials to the writer goroutine.
// Only the latest pending value is kept.
func (h *Handle) OnCredentialsChanged(creds authstate.Value) {
	for {
		select {
		case h.pendingCreds <- creds:
			return
		default:
		}
		select {
		case <-h.pendingCreds:
		default:
		}
	}
}

func (h *Handle) OnMessages(events []domain.RawEvent) {
	if len(events) == 0 {
		return
	}
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	batch := domain.NewRawBatch(h.self, events, time.Now().UTC())
	if !h.subscribed {
		// Messages following the open update may arrive before Connect returns.
		h.backlog = append(h.backlog, batch)
		h.mu.Unlock()
		return
	}
	listeners := make([]BatchListener, 0, len(h.listeners))
	for _, l := range h.listeners {
		listeners = append(listeners, l)
	}
	h.mu.Unlock()

	if len(listeners) == 0 {
		h.connector.log.Warn("Batch dropped, no listener subscribed", "batch_id", batch.ID, "events", len(events))
		return
	}
	for _, l := range listeners {
		l(batch)
	}
}

// writeCredentials persists credential updates one at a time. Failures are
// logged and never end the connection.
func (h *Handle) writeCredentials() {
	defer close(h.writerDone)
	for {
		select {
		case creds := <-h.pendingCreds:
			h.persist(creds)
		case <-h.done:
			select {
			case creds := <-h.pendingCreds:
				h.persist(creds)
			default:
			}
			return
		}
	}
}

func (h *Handle) persist(creds authstate.Value) {
	c := h.connector
	ctx, cancel := context.WithTimeout(context.Background(), c.policy.CredentialFlushTimeout)
	defer cancel()
	if err := c.auth.SaveCreds(ctx, creds); err != nil {
		c.log.Error("Failed to persist updated credentials", "error", err)
		return
	}
	c.log.Debug("Credentials persisted")
}
