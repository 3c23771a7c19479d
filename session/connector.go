// Package session owns the lifecycle of the connection to the remote service.
//
// State machine:
//
//	disconnected -> connecting -> open
//	connecting   -> disconnected   (attempt failed)
//	open         -> connecting     (unexpected drop)
//	any          -> logged_out     (remote logout, terminal)
package session

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

type Connector struct {
	log       *slog.Logger
	sessionID string
	dialer    contract.Dialer
	auth      AuthState
	presenter contract.PairingPresenter
	policy    Policy
	state     atomic.Int32
}

func NewConnector(log *slog.Logger, sessionID string, dialer contract.Dialer,
	store contract.IAuthStore, presenter contract.PairingPresenter, policy Policy) *Connector {
	return &Connector{
		log:       log.With("session", sessionID),
		sessionID: sessionID,
		dialer:    dialer,
		auth:      NewAuthState(store, sessionID),
		presenter: presenter,
		policy:    policy,
	}
}

// State is a non-blocking snapshot of the connection state.
func (c *Connector) State() domain.ConnectionState {
	return domain.ConnectionState(c.state.Load())
}

func (c *Connector) setState(next domain.ConnectionState) {
	prev := domain.ConnectionState(c.state.Swap(int32(next)))
	if prev != next {
		c.log.Info("Connection state changed", "from", prev.String(), "to", next.String())
	}
}

// Connect dials the remote service until the connection opens, retrying with
// exponential backoff up to Policy.MaxAttempts attempts. The returned Handle
// must be closed by the caller. Errors wrap ErrConnection, and also
// ErrLoggedOut when the remote service revoked the session.
func (c *Connector) Connect(ctx context.Context) (*Handle, error) {
	if c.State() == domain.LoggedOut {
		return nil, fmt.Errorf("%w: %w", customErrors.ErrConnection, customErrors.ErrLoggedOut)
	}

	schedule := c.policy.schedule()
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		c.setState(domain.Connecting)
		handle, err := c.attempt(ctx)
		if err == nil {
			c.setState(domain.Open)
			return handle, nil
		}
		lastErr = err

		if errors.Is(err, customErrors.ErrLoggedOut) {
			c.setState(domain.LoggedOut)
			c.log.Error("Session logged out by the remote service", "error", err)
			return nil, fmt.Errorf("%w: %w", customErrors.ErrConnection, err)
		}
		c.setState(domain.Disconnected)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := schedule.NextBackOff()
		c.log.Warn("Connection attempt failed, retrying",
			"attempt", attempt, "max_attempts", c.policy.MaxAttempts, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	c.log.Error("Connection retries exhausted", "attempts", c.policy.MaxAttempts, "error", lastErr)
	return nil, fmt.Errorf("%w: %d attempts exhausted: %w", customErrors.ErrConnection, c.policy.MaxAttempts, lastErr)
}

// attempt performs one dial and waits for the handshake to complete.
func (c *Connector) attempt(ctx context.Context) (*Handle, error) {
	creds, found, err := c.auth.Creds(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		c.log.Info("No stored credentials, the transport will pair a new session")
	}

	transport, err := c.dialer.Dial(ctx, c.sessionID, creds, c.auth.Keys())
	if err != nil {
		return nil, err
	}
	handle := newHandle(c, transport)

	handshakeCtx, cancel := context.WithTimeout(ctx, c.policy.HandshakeTimeout)
	defer cancel()
	select {
	case <-handle.opened:
		return handle, nil
	case <-handle.done:
		err = handle.Err()
	case <-handshakeCtx.Done():
		err = fmt.Errorf("handshake: %w", handshakeCtx.Err())
	}
	_ = handle.Close()
	return nil, err
}

// ClearSession deletes the stored credentials and keys so that the next
// Connect pairs a new session.
func (c *Connector) ClearSession(ctx context.Context) error {
	if err := c.auth.Clear(ctx); err != nil {
		return err
	}
	c.setState(domain.Disconnected)
	return nil
}

// dropped records an unexpected end of an open connection.
func (c *Connector) dropped(err error) {
	if errors.Is(err, customErrors.ErrLoggedOut) {
		c.setState(domain.LoggedOut)
		return
	}
	if c.State() == domain.Open {
		c.setState(domain.Connecting)
	}
}
