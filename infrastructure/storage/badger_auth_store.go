package storage

import (
	"chat-ingest/authstate"
	customErrors "chat-ingest/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// BadgerAuthStore keeps credential and signal-key blobs in BadgerDB.
// Values are the authstate JSON text, the same representation as the SQL store.
//
//	cred:{session}                      -> credential
//	key:{session}\x00{category}\x00{id} -> signal key
type BadgerAuthStore struct {
	db  *badger.DB
	log *slog.Logger
}

func NewBadgerAuthStore(db *badger.DB, log *slog.Logger) *BadgerAuthStore {
	return &BadgerAuthStore{db: db, log: log}
}

func credentialKey(sessionID string) []byte {
	return []byte("cred:" + sessionID)
}

func sessionKeysPrefix(sessionID string) []byte {
	return []byte("key:" + sessionID + "\x00")
}

func signalKey(sessionID, category, id string) []byte {
	return []byte("key:" + sessionID + "\x00" + category + "\x00" + id)
}

func (s *BadgerAuthStore) SaveCredential(_ context.Context, sessionID string, creds authstate.Value) (authstate.Value, error) {
	text, err := authstate.Encode(creds)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey(sessionID), []byte(text))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: save credential for %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	return authstate.Decode(text)
}

func (s *BadgerAuthStore) LoadCredential(_ context.Context, sessionID string) (authstate.Value, bool, error) {
	var text []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(sessionID))
		if err != nil {
			return err
		}
		text, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load credential for %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	creds, err := authstate.Decode(string(text))
	if err != nil {
		return nil, false, fmt.Errorf("%w: credential for %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	return creds, true, nil
}

// SaveKeys commits every entry in its own transaction and keeps going after a failure.
func (s *BadgerAuthStore) SaveKeys(_ context.Context, sessionID string, batch authstate.KeyBatch) error {
	var errs []error
	for _, entry := range flattenBatch(batch) {
		key := signalKey(sessionID, entry.category, entry.id)
		if entry.value == nil {
			if err := s.db.Update(func(txn *badger.Txn) error { return txn.Delete(key) }); err != nil {
				errs = append(errs, fmt.Errorf("delete key %s/%s: %w", entry.category, entry.id, err))
			}
			continue
		}
		text, err := authstate.Encode(entry.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode key %s/%s: %w", entry.category, entry.id, err))
			continue
		}
		if err := s.db.Update(func(txn *badger.Txn) error { return txn.Set(key, []byte(text)) }); err != nil {
			errs = append(errs, fmt.Errorf("save key %s/%s: %w", entry.category, entry.id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: save keys for %q: %w", customErrors.ErrPersistence, sessionID, errors.Join(errs...))
	}
	return nil
}

func (s *BadgerAuthStore) LoadKeys(_ context.Context, sessionID, category string, ids []string) (map[string]authstate.Value, error) {
	result := make(map[string]authstate.Value)
	if len(ids) == 0 {
		return result, nil
	}
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range lo.Uniq(ids) {
			item, err := txn.Get(signalKey(sessionID, category, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			text, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			value, err := authstate.Decode(string(text))
			if err != nil {
				return fmt.Errorf("key %s/%s: %w", category, id, err)
			}
			result[id] = value
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load keys %s for %q: %w", customErrors.ErrPersistence, category, sessionID, err)
	}
	return result, nil
}

func (s *BadgerAuthStore) ClearSession(_ context.Context, sessionID string) error {
	prefix := sessionKeysPrefix(sessionID)
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: clear session %q: %w", customErrors.ErrPersistence, sessionID, err)
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range append(keys, credentialKey(sessionID)) {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("%w: clear session %q: %w", customErrors.ErrPersistence, sessionID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: clear session %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	s.log.Info("Session cleared", "session", sessionID)
	return nil
}
