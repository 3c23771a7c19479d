package storage

import (
	"chat-ingest/contract"
	"chat-ingest/domain"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type backendUnderTest struct {
	name     string
	messages contract.IMessageRepository
	auth     contract.IAuthStore
}

// openBackends returns one fresh sqlite and one in-memory badger backend with a frozen clock.
func openBackends(t *testing.T) []backendUnderTest {
	t.Helper()
	log := silentLogger()

	sqlDB, err := OpenSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	sqlMessages := NewSQLMessageRepository(sqlDB, log)
	sqlMessages.now = func() time.Time { return fixedNow }
	sqlAuth := NewSQLAuthStore(sqlDB, log)
	sqlAuth.now = func() time.Time { return fixedNow }

	badgerDB, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerDB.Close() })
	badgerMessages := NewBadgerMessageRepository(badgerDB, log)
	badgerMessages.now = func() time.Time { return fixedNow }

	return []backendUnderTest{
		{name: SQLiteBackend, messages: sqlMessages, auth: sqlAuth},
		{name: BadgerBackend, messages: badgerMessages, auth: NewBadgerAuthStore(badgerDB, log)},
	}
}

func newMessage(id, conversation string, at time.Time) domain.Message {
	return domain.Message{
		ID:             id,
		From:           lo.ToPtr("33611111111"),
		To:             lo.ToPtr("33622222222"),
		ConversationID: conversation,
		Timestamp:      at,
		Content:        "hello " + id,
		Type:           domain.TextType,
	}
}
