package storage

import (
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerMessageRepository stores messages in BadgerDB.
// Keys:
//
//	msg:{id}                                     -> CBOR record
//	idx:conv:{conversation}\x00{timestamp}:{id}   -> id
//	idx:unprocessed:{timestamp}:{id}              -> id
//
// Timestamps are 19-digit zero padded nanoseconds so that lexicographical
// key order is chronological order.
type BadgerMessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewBadgerMessageRepository(db *badger.DB, log *slog.Logger) *BadgerMessageRepository {
	return &BadgerMessageRepository{db: db, log: log, now: utcNow}
}

func messageKey(id string) []byte {
	return []byte("msg:" + id)
}

func conversationPrefix(conversationID string) []byte {
	return []byte("idx:conv:" + conversationID + "\x00")
}

func conversationKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("idx:conv:%s\x00%019d:%s", m.ConversationID, m.Timestamp.UnixNano(), m.ID))
}

var unprocessedPrefix = []byte("idx:unprocessed:")

func unprocessedKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("idx:unprocessed:%019d:%s", m.Timestamp.UnixNano(), m.ID))
}

// Insert stores a message and its index entries in one transaction.
// An already stored id is left untouched.
func (r *BadgerMessageRepository) Insert(_ context.Context, message domain.Message) error {
	message.Processed = false
	message.CreatedAt = r.now()
	value, err := marshalMessage(message)
	if err != nil {
		return fmt.Errorf("%w: encode message %q: %w", customErrors.ErrPersistence, message.ID, err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(messageKey(message.ID))
		if err == nil {
			r.log.Debug("Message already stored, skipping", "id", message.ID)
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(messageKey(message.ID), value); err != nil {
			return err
		}
		if err := txn.Set(conversationKey(message), []byte(message.ID)); err != nil {
			return err
		}
		return txn.Set(unprocessedKey(message), []byte(message.ID))
	})
	if err != nil {
		return fmt.Errorf("%w: insert message %q: %w", customErrors.ErrPersistence, message.ID, err)
	}
	return nil
}

func (r *BadgerMessageRepository) Get(_ context.Context, id string) (domain.Message, error) {
	var message domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessage(txn, id)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, fmt.Errorf("%w: message %q", customErrors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: get message %q: %w", customErrors.ErrPersistence, id, err)
	}
	return message, nil
}

func (r *BadgerMessageRepository) ListUnprocessed(_ context.Context) ([]domain.Message, error) {
	return r.listByIndex(unprocessedPrefix)
}

func (r *BadgerMessageRepository) CountUnprocessed(_ context.Context) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(unprocessedPrefix); it.ValidForPrefix(unprocessedPrefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: count unprocessed: %w", customErrors.ErrPersistence, err)
	}
	return count, nil
}

// MarkProcessed flips the processed flag and drops the unprocessed index entry.
// Marking an already processed message is a no-op.
func (r *BadgerMessageRepository) MarkProcessed(_ context.Context, id string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		message, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if message.Processed {
			return nil
		}
		message.Processed = true
		value, err := marshalMessage(message)
		if err != nil {
			return err
		}
		if err := txn.Set(messageKey(id), value); err != nil {
			return err
		}
		return txn.Delete(unprocessedKey(message))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: message %q", customErrors.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("%w: mark processed %q: %w", customErrors.ErrPersistence, id, err)
	}
	return nil
}

func (r *BadgerMessageRepository) ListByConversation(_ context.Context, conversationID string) ([]domain.Message, error) {
	return r.listByIndex(conversationPrefix(conversationID))
}

// listByIndex resolves every index entry under prefix, in key order.
func (r *BadgerMessageRepository) listByIndex(prefix []byte) ([]domain.Message, error) {
	var messages []domain.Message
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			message, err := getMessage(txn, string(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				r.log.Warn("Dangling index entry", "key", string(it.Item().Key()))
				continue
			}
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", customErrors.ErrPersistence, err)
	}
	return messages, nil
}

func getMessage(txn *badger.Txn, id string) (domain.Message, error) {
	item, err := txn.Get(messageKey(id))
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err = item.Value(func(value []byte) error {
		var decodeErr error
		message, decodeErr = unmarshalMessage(value)
		return decodeErr
	})
	return message, err
}
