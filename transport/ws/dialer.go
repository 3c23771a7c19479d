package ws

import (
	"chat-ingest/authstate"
	"chat-ingest/contract"
	"context"
	"fmt"
	"log/slog"
	"time"

	"nhooyr.io/websocket"
)

const defaultWriteTimeout = 10 * time.Second

// Dialer connects to the gateway at URL and introduces the session with a
// hello frame carrying the stored credentials.
type Dialer struct {
	log          *slog.Logger
	url          string
	writeTimeout time.Duration
}

func NewDialer(log *slog.Logger, url string) *Dialer {
	return &Dialer{log: log, url: url, writeTimeout: defaultWriteTimeout}
}

func (d *Dialer) Dial(ctx context.Context, sessionID string, creds authstate.Value, keys contract.KeyStore) (contract.Transport, error) {
	conn, _, err := websocket.Dial(ctx, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial gateway %s: %w", d.url, err)
	}
	// key batches of a busy session exceed the 32KiB default
	conn.SetReadLimit(16 << 20)

	hello := Frame{Type: TypeHello, SessionID: sessionID}
	if creds != nil {
		if hello.Creds, err = authstate.EncodeJSON(creds); err != nil {
			_ = conn.Close(websocket.StatusInternalError, "invalid credentials")
			return nil, err
		}
	}

	t := newTransport(d.log.With("gateway", d.url), conn, keys, d.writeTimeout)
	if err := t.send(ctx, hello); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "hello failed")
		return nil, fmt.Errorf("send hello: %w", err)
	}
	return t, nil
}
