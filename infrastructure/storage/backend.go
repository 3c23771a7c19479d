package storage

import (
	"chat-ingest/contract"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

const (
	SQLiteBackend = "sqlite"
	BadgerBackend = "badger"
)

// Backend bundles the repositories built on one storage engine.
type Backend struct {
	Name     string
	Messages contract.IMessageRepository
	Auth     contract.IAuthStore
	close    func() error
}

func (b Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend opens the engine selected by name at path.
func OpenBackend(name, path string, log *slog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SQLiteBackend:
		db, err := OpenSQLite(path)
		if err != nil {
			return Backend{}, err
		}
		return Backend{
			Name:     SQLiteBackend,
			Messages: NewSQLMessageRepository(db, log),
			Auth:     NewSQLAuthStore(db, log),
			close:    db.Close,
		}, nil
	case BadgerBackend:
		db, err := badger.Open(badger.DefaultOptions(path).
			WithLogger(newBadgerLogger(log)).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return Backend{}, fmt.Errorf("open badger database: %w", err)
		}
		return NewBadgerBackend(db, log), nil
	default:
		return Backend{}, fmt.Errorf("unknown storage backend %q", name)
	}
}

// OpenBackendReadOnly opens an existing store for reading. Nothing is created
// or migrated when path is wrong.
func OpenBackendReadOnly(name, path string, log *slog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SQLiteBackend:
		db, err := OpenSQLiteReadOnly(path)
		if err != nil {
			return Backend{}, err
		}
		return Backend{
			Name:     SQLiteBackend,
			Messages: NewSQLMessageRepository(db, log),
			Auth:     NewSQLAuthStore(db, log),
			close:    db.Close,
		}, nil
	case BadgerBackend:
		if _, err := os.Stat(path); err != nil {
			return Backend{}, fmt.Errorf("open badger database: %w", err)
		}
		db, err := badger.Open(badger.DefaultOptions(path).
			WithReadOnly(true).
			WithLogger(newBadgerLogger(log)).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return Backend{}, fmt.Errorf("open badger database: %w", err)
		}
		return NewBadgerBackend(db, log), nil
	default:
		return Backend{}, fmt.Errorf("unknown storage backend %q", name)
	}
}

// NewBadgerBackend wraps an already opened BadgerDB.
func NewBadgerBackend(db *badger.DB, log *slog.Logger) Backend {
	return Backend{
		Name:     BadgerBackend,
		Messages: NewBadgerMessageRepository(db, log),
		Auth:     NewBadgerAuthStore(db, log),
		close:    db.Close,
	}
}
