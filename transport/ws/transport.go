package ws

import (
	"chat-ingest/authstate"
	"chat-ingest/contract"
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Transport is one gateway connection. Frames are read only once the
// first listener subscribes, so no early update is lost.
type Transport struct {
	log          *slog.Logger
	conn         *websocket.Conn
	keys         contract.KeyStore
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[int]contract.TransportListener
	nextID    int

	writeMu   sync.Mutex
	startOnce sync.Once
	ended     atomic.Bool
	endOnce   sync.Once
	done      chan struct{}
}

func newTransport(log *slog.Logger, conn *websocket.Conn, keys contract.KeyStore, writeTimeout time.Duration) *Transport {
	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		log:          log,
		conn:         conn,
		keys:         keys,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		listeners:    make(map[int]contract.TransportListener),
		done:         make(chan struct{}),
	}
}

func (t *Transport) Subscribe(listener contract.TransportListener) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = listener
	t.mu.Unlock()

	t.startOnce.Do(func() { go t.readLoop() })
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// End closes the connection. A nil err is a normal closure.
func (t *Transport) End(err error) error {
	t.endOnce.Do(func() {
		t.ended.Store(true)
		code, reason := websocket.StatusNormalClosure, "client closing"
		if err != nil {
			code, reason = websocket.StatusInternalError, err.Error()
		}
		if closeErr := t.conn.Close(code, reason); closeErr != nil {
			t.log.Debug("Close handshake incomplete", "error", closeErr)
		}
		t.cancel()
	})
	return nil
}

func (t *Transport) snapshot() []contract.TransportListener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lo.Values(t.listeners)
}

func (t *Transport) readLoop() {
	defer close(t.done)
	for {
		var f Frame
		if err := wsjson.Read(t.ctx, t.conn, &f); err != nil {
			if t.ended.Load() {
				return
			}
			t.log.Warn("Gateway connection lost", "error", err)
			reason := err.Error()
			if status := websocket.CloseStatus(err); status != -1 {
				reason = status.String()
			}
			for _, l := range t.snapshot() {
				l.OnConnectionUpdate(domain.ConnectionUpdate{Connection: domain.PhaseClose, Reason: reason})
			}
			return
		}
		t.dispatch(f)
	}
}

func (t *Transport) dispatch(f Frame) {
	switch f.Type {
	case TypeConnectionUpdate:
		for _, l := range t.snapshot() {
			l.OnConnectionUpdate(f.ConnectionUpdate)
		}
	case TypeCredsUpdate:
		creds, err := authstate.DecodeJSON(f.Creds)
		if err != nil {
			t.log.Error("Invalid credentials frame", "error", fmt.Errorf("%w: %w", customErrors.ErrInvalidPayload, err))
			return
		}
		for _, l := range t.snapshot() {
			l.OnCredentialsChanged(creds)
		}
	case TypeMessagesUpsert:
		t.log.Debug("Messages received", "count", len(f.Messages))
		for _, l := range t.snapshot() {
			l.OnMessages(f.Messages)
		}
	case TypeKeysGet:
		t.answerKeysGet(f)
	case TypeKeysSet:
		t.answerKeysSet(f)
	default:
		t.log.Warn("Unknown gateway frame", "type", f.Type)
	}
}

func (t *Transport) answerKeysGet(f Frame) {
	reply := Frame{Type: TypeKeysResult, RequestID: f.RequestID}
	keys, err := t.keys.Get(t.ctx, f.Category, f.IDs)
	if err == nil {
		reply.Keys, err = EncodeKeys(keys)
	}
	if err != nil {
		t.log.Error("Key lookup failed", "category", f.Category, "error", err)
		reply.Error = err.Error()
		reply.Keys = nil
	}
	t.write(reply)
}

func (t *Transport) answerKeysSet(f Frame) {
	reply := Frame{Type: TypeAck, RequestID: f.RequestID}
	batch, err := DecodeBatch(f.Batch)
	if err == nil {
		err = t.keys.Set(t.ctx, batch)
	}
	if err != nil {
		t.log.Error("Key update failed", "error", err)
		reply.Error = err.Error()
	}
	t.write(reply)
}

func (t *Transport) write(f Frame) {
	if err := t.send(t.ctx, f); err != nil && !t.ended.Load() {
		t.log.Warn("Failed to write gateway frame", "type", f.Type, "error", err)
	}
}

func (t *Transport) send(ctx context.Context, f Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, t.writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, t.conn, f); err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %w", customErrors.ErrTransportClosed, err)
		}
		return err
	}
	return nil
}
