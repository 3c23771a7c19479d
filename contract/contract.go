//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-ingest/authstate"
	"chat-ingest/domain"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context) error
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives every normalized message, in arrival order.
type EventSink interface {
	Consume(ctx context.Context, message domain.Message) error
}

// IMessageRepository is the typed CRUD surface over persisted messages.
type IMessageRepository interface {
	Insert(ctx context.Context, message domain.Message) error
	Get(ctx context.Context, id string) (domain.Message, error)
	ListUnprocessed(ctx context.Context) ([]domain.Message, error)
	CountUnprocessed(ctx context.Context) (int, error)
	MarkProcessed(ctx context.Context, id string) error
	ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// IAuthStore persists one credential blob and many signal-key blobs per session.
type IAuthStore interface {
	SaveCredential(ctx context.Context, sessionID string, creds authstate.Value) (authstate.Value, error)
	LoadCredential(ctx context.Context, sessionID string) (authstate.Value, bool, error)
	SaveKeys(ctx context.Context, sessionID string, batch authstate.KeyBatch) error
	LoadKeys(ctx context.Context, sessionID, category string, ids []string) (map[string]authstate.Value, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// KeyStore is the signal-key view of one session handed to the transport.
type KeyStore interface {
	Get(ctx context.Context, category string, ids []string) (map[string]authstate.Value, error)
	Set(ctx context.Context, batch authstate.KeyBatch) error
}

// TransportListener receives the push events of a live transport.
// Callbacks run on the transport's own goroutine and must not block.
type TransportListener interface {
	OnConnectionUpdate(update domain.ConnectionUpdate)
	OnCredentialsChanged(creds authstate.Value)
	OnMessages(events []domain.RawEvent)
}

// Transport is one live connection to the remote service.
type Transport interface {
	Subscribe(listener TransportListener) (unsubscribe func())
	End(err error) error
}

// Dialer opens a transport authenticated with the given credentials.
// creds is nil when the session has never been paired.
type Dialer interface {
	Dial(ctx context.Context, sessionID string, creds authstate.Value, keys KeyStore) (Transport, error)
}

// PairingPresenter surfaces out-of-band pairing material (QR payload, pairing code).
type PairingPresenter interface {
	Present(update domain.ConnectionUpdate)
}
