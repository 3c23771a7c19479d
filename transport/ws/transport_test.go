package ws

import (
	"chat-ingest/authstate"
	"chat-ingest/domain"
	"chat-ingest/mocks"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// recorder collects every callback of the transport.
type recorder struct {
	mu      sync.Mutex
	updates []domain.ConnectionUpdate
	creds   []authstate.Value
	events  [][]domain.RawEvent
	got     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{got: make(chan struct{}, 64)}
}

func (r *recorder) OnConnectionUpdate(u domain.ConnectionUpdate) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) OnCredentialsChanged(v authstate.Value) {
	r.mu.Lock()
	r.creds = append(r.creds, v)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) OnMessages(events []domain.RawEvent) {
	r.mu.Lock()
	r.events = append(r.events, events)
	r.mu.Unlock()
	r.got <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int) {
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d callbacks, got %d", n, i)
		}
	}
}

// gateway runs script against the first client that connects.
func gateway(t *testing.T, script func(ctx context.Context, c *websocket.Conn)) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer c.CloseNow()
		script(r.Context(), c)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTransport_HelloAndPushEvents(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	creds := authstate.Mapping{"noiseKey": authstate.Binary{1, 2, 3}}
	hellos := make(chan Frame, 1)
	text := "hello"
	url := gateway(t, func(ctx context.Context, c *websocket.Conn) {
		var hello Frame
		if err := wsjson.Read(ctx, c, &hello); err != nil {
			return
		}
		hellos <- hello
		rawCreds, _ := authstate.EncodeJSON(authstate.Mapping{"me": authstate.String("33600000000@s.whatsapp.net")})
		_ = wsjson.Write(ctx, c, Frame{Type: TypeConnectionUpdate, ConnectionUpdate: domain.ConnectionUpdate{Connection: "open", Me: "33600000000@s.whatsapp.net"}})
		_ = wsjson.Write(ctx, c, Frame{Type: TypeCredsUpdate, Creds: rawCreds})
		_ = wsjson.Write(ctx, c, Frame{Type: TypeMessagesUpsert, Messages: []domain.RawEvent{{
			Key:              domain.MessageKey{ID: "A1", RemoteJID: "33611111111@s.whatsapp.net"},
			MessageTimestamp: 1700000000,
			Message:          &domain.Payload{Conversation: &text},
		}}})
		_, _, _ = c.Read(ctx)
	})

	// Given a transport dialed with stored credentials
	transport, err := NewDialer(log, url).Dial(context.Background(), "default", creds, mocks.NewMockKeyStore(ctrl))
	req.NoError(err)
	rec := newRecorder()
	transport.Subscribe(rec)

	// Then the gateway received the session and binary-safe credentials
	hello := <-hellos
	req.Equal(TypeHello, hello.Type)
	req.Equal("default", hello.SessionID)
	decoded, err := authstate.DecodeJSON(hello.Creds)
	req.NoError(err)
	req.True(authstate.Equal(creds, decoded))

	// And every pushed frame reached the listener
	rec.wait(t, 3)
	req.Equal("open", rec.updates[0].Connection)
	req.Equal(authstate.String("33600000000@s.whatsapp.net"), rec.creds[0].(authstate.Mapping)["me"])
	req.Len(rec.events, 1)
	req.Equal("A1", rec.events[0][0].Key.ID)
	req.Equal("hello", *rec.events[0][0].Message.Conversation)

	req.NoError(transport.End(nil))
}

func TestTransport_AnswersKeyRequests(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	keys := mocks.NewMockKeyStore(ctrl)

	// Given a key store holding one pre-key
	preKey := authstate.Mapping{"public": authstate.Binary{9, 9}}
	keys.EXPECT().Set(gomock.Any(), authstate.KeyBatch{"pre-key": {"1": preKey, "2": nil}}).Return(nil)
	keys.EXPECT().Get(gomock.Any(), "pre-key", []string{"1", "3"}).
		Return(map[string]authstate.Value{"1": preKey}, nil)

	replies := make(chan Frame, 2)
	url := gateway(t, func(ctx context.Context, c *websocket.Conn) {
		var hello Frame
		if err := wsjson.Read(ctx, c, &hello); err != nil {
			return
		}
		batch, _ := EncodeBatch(authstate.KeyBatch{"pre-key": {"1": preKey, "2": nil}})
		_ = wsjson.Write(ctx, c, Frame{Type: TypeKeysSet, RequestID: "r1", Batch: batch})
		_ = wsjson.Write(ctx, c, Frame{Type: TypeKeysGet, RequestID: "r2", Category: "pre-key", IDs: []string{"1", "3"}})
		for i := 0; i < 2; i++ {
			var f Frame
			if err := wsjson.Read(ctx, c, &f); err != nil {
				return
			}
			replies <- f
		}
		_, _, _ = c.Read(ctx)
	})

	transport, err := NewDialer(log, url).Dial(context.Background(), "default", nil, keys)
	req.NoError(err)
	transport.Subscribe(newRecorder())

	// Then the set is acknowledged and the get answered
	ack := <-replies
	req.Equal(TypeAck, ack.Type)
	req.Equal("r1", ack.RequestID)
	req.Empty(ack.Error)

	result := <-replies
	req.Equal(TypeKeysResult, result.Type)
	req.Equal("r2", result.RequestID)
	got, err := DecodeKeys(result.Keys)
	req.NoError(err)
	req.Len(got, 1)
	req.True(authstate.Equal(preKey, got["1"]))

	req.NoError(transport.End(nil))
}

func TestTransport_RemoteCloseIsReported(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	url := gateway(t, func(ctx context.Context, c *websocket.Conn) {
		var hello Frame
		if err := wsjson.Read(ctx, c, &hello); err != nil {
			return
		}
		_ = c.Close(websocket.StatusGoingAway, "restarting")
	})

	transport, err := NewDialer(log, url).Dial(context.Background(), "default", nil, mocks.NewMockKeyStore(ctrl))
	req.NoError(err)
	rec := newRecorder()
	transport.Subscribe(rec)

	// Then the listener sees a close update
	rec.wait(t, 1)
	req.Equal(domain.PhaseClose, rec.updates[0].Connection)
	req.False(rec.updates[0].LoggedOut)
	req.NoError(transport.End(nil))
}

func TestDialer_UnreachableGateway(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewDialer(log, "ws://127.0.0.1:1/session").Dial(ctx, "default", nil, mocks.NewMockKeyStore(ctrl))

	req.Error(err)
}

func TestBatchCodec_NullMeansDelete(t *testing.T) {
	req := require.New(t)
	batch := authstate.KeyBatch{"session": {"a": authstate.Binary{1}, "b": nil}}

	raw, err := EncodeBatch(batch)
	req.NoError(err)
	decoded, err := DecodeBatch(raw)
	req.NoError(err)

	req.Nil(decoded["session"]["b"])
	_, present := decoded["session"]["b"]
	req.True(present)
	req.True(authstate.Equal(authstate.Binary{1}, decoded["session"]["a"]))

	_, err = DecodeBatch([]byte(`["not", "a", "mapping"]`))
	req.Error(err)
}
