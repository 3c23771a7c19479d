package storage

import (
	"chat-ingest/authstate"
	customErrors "chat-ingest/errors"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

// SQLAuthStore keeps credential and signal-key blobs in the auth_credentials
// and auth_keys tables, encoded with authstate.Encode.
type SQLAuthStore struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

func NewSQLAuthStore(db *sql.DB, log *slog.Logger) *SQLAuthStore {
	return &SQLAuthStore{db: db, log: log, now: utcNow}
}

func (s *SQLAuthStore) SaveCredential(ctx context.Context, sessionID string, creds authstate.Value) (authstate.Value, error) {
	const query = `
INSERT INTO auth_credentials (session_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at;`

	text, err := authstate.Encode(creds)
	if err != nil {
		return nil, err
	}
	now := s.now().UnixMilli()
	if _, err := s.db.ExecContext(ctx, query, sessionID, text, now, now); err != nil {
		return nil, fmt.Errorf("%w: save credential for %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	return authstate.Decode(text)
}

// LoadCredential returns found=false when the session was never paired.
func (s *SQLAuthStore) LoadCredential(ctx context.Context, sessionID string) (authstate.Value, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM auth_credentials WHERE session_id = ?;`, sessionID).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load credential for %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	creds, err := authstate.Decode(text)
	if err != nil {
		return nil, false, fmt.Errorf("%w: credential for %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	return creds, true, nil
}

// SaveKeys writes each entry of the batch with its own statement. Entries are
// applied in a stable order and a failing entry does not stop the others;
// every failure is reported in the returned error.
func (s *SQLAuthStore) SaveKeys(ctx context.Context, sessionID string, batch authstate.KeyBatch) error {
	const upsert = `
INSERT INTO auth_keys (session_id, category, key_id, data, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, category, key_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at;`
	const remove = `DELETE FROM auth_keys WHERE session_id = ? AND category = ? AND key_id = ?;`

	var errs []error
	for _, entry := range flattenBatch(batch) {
		if entry.value == nil {
			if _, err := s.db.ExecContext(ctx, remove, sessionID, entry.category, entry.id); err != nil {
				errs = append(errs, fmt.Errorf("delete key %s/%s: %w", entry.category, entry.id, err))
			}
			continue
		}
		text, err := authstate.Encode(entry.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode key %s/%s: %w", entry.category, entry.id, err))
			continue
		}
		now := s.now().UnixMilli()
		if _, err := s.db.ExecContext(ctx, upsert, sessionID, entry.category, entry.id, text, now, now); err != nil {
			errs = append(errs, fmt.Errorf("save key %s/%s: %w", entry.category, entry.id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: save keys for %q: %w", customErrors.ErrPersistence, sessionID, errors.Join(errs...))
	}
	return nil
}

// LoadKeys returns the blobs found for ids. Missing ids are simply absent from the result.
func (s *SQLAuthStore) LoadKeys(ctx context.Context, sessionID, category string, ids []string) (map[string]authstate.Value, error) {
	result := make(map[string]authstate.Value)
	if len(ids) == 0 {
		return result, nil
	}

	ids = lo.Uniq(ids)
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT key_id, data FROM auth_keys WHERE session_id = ? AND category = ? AND key_id IN (` + placeholders + `);`
	args := append([]any{sessionID, category}, lo.ToAnySlice(ids)...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: load keys %s for %q: %w", customErrors.ErrPersistence, category, sessionID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("%w: scan key: %w", customErrors.ErrPersistence, err)
		}
		value, err := authstate.Decode(text)
		if err != nil {
			return nil, fmt.Errorf("%w: key %s/%s: %w", customErrors.ErrPersistence, category, id, err)
		}
		result[id] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate keys: %w", customErrors.ErrPersistence, err)
	}
	return result, nil
}

func (s *SQLAuthStore) ClearSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: clear session %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_keys WHERE session_id = ?;`, sessionID); err != nil {
		return fmt.Errorf("%w: clear keys of %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_credentials WHERE session_id = ?;`, sessionID); err != nil {
		return fmt.Errorf("%w: clear credential of %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: clear session %q: %w", customErrors.ErrPersistence, sessionID, err)
	}
	s.log.Info("Session cleared", "session", sessionID)
	return nil
}
