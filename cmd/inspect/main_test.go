package main

import (
	"bytes"
	"chat-ingest/domain"
	"chat-ingest/infrastructure/storage"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestRun_ListsConversation(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "ingest.db")

	// Given two stored messages
	backend, err := storage.OpenBackend(storage.SQLiteBackend, path, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)
	for i, id := range []string{"A1", "A2"} {
		req.NoError(backend.Messages.Insert(context.Background(), domain.Message{
			ID:             id,
			From:           lo.ToPtr("33611111111"),
			To:             lo.ToPtr("33600000000"),
			ConversationID: "33611111111@s.whatsapp.net",
			Timestamp:      time.Unix(1700000000+int64(i), 0).UTC(),
			Content:        "hello " + id,
			Type:           domain.TextType,
		}))
	}
	req.NoError(backend.Close())

	// When listing the conversation
	var out bytes.Buffer
	err = run([]string{"--db", path, "-c", "33611111111@s.whatsapp.net"}, &out)

	// Then both rows are printed
	req.NoError(err)
	req.Contains(out.String(), "hello A1")
	req.Contains(out.String(), "hello A2")
	req.Contains(out.String(), "2 message(s)")
}

func TestRun_RequiresAQuery(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	err := run([]string{"--db", filepath.Join(t.TempDir(), "ingest.db")}, &out)

	req.Error(err)
}

func TestRun_DoesNotCreateMissingDatabase(t *testing.T) {
	req := require.New(t)
	dir := filepath.Join(t.TempDir(), "typo")
	path := filepath.Join(dir, "ingest.db")
	var out bytes.Buffer

	// When pointing inspect at a path that does not exist
	err := run([]string{"--db", path, "-u"}, &out)

	// Then it fails and leaves the filesystem untouched
	req.ErrorIs(err, os.ErrNotExist)
	_, statErr := os.Stat(dir)
	req.ErrorIs(statErr, os.ErrNotExist)
}

func TestRun_LeavesDatabaseUnchanged(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "ingest.db")

	// Given a database with one unprocessed message
	backend, err := storage.OpenBackend(storage.SQLiteBackend, path, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)
	req.NoError(backend.Messages.Insert(context.Background(), domain.Message{
		ID:             "U1",
		ConversationID: "33611111111@s.whatsapp.net",
		Timestamp:      time.Unix(1700000000, 0).UTC(),
		Content:        "pending",
		Type:           domain.TextType,
	}))
	req.NoError(backend.Close())

	// When listing unprocessed messages twice
	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		req.NoError(run([]string{"--db", path, "--unprocessed"}, &out))
		req.Contains(out.String(), "1 message(s)")
	}

	// Then the message is still waiting for reconciliation
	backend, err = storage.OpenBackend(storage.SQLiteBackend, path, logs.GetLoggerFromLevel(slog.LevelError))
	req.NoError(err)
	defer backend.Close()
	count, err := backend.Messages.CountUnprocessed(context.Background())
	req.NoError(err)
	req.Equal(1, count)
}
