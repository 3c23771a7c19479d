package storage

import (
	"chat-ingest/domain"
	customErrors "chat-ingest/errors"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const messageColumns = `id, from_number, to_number, conversation_id, timestamp, content, type,
       is_outbound, is_group, processed, created_at`

type SQLMessageRepository struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

func NewSQLMessageRepository(db *sql.DB, log *slog.Logger) *SQLMessageRepository {
	return &SQLMessageRepository{db: db, log: log, now: utcNow}
}

// Insert stores a new message. A message whose id is already stored is left
// untouched so that redelivered events keep their processed flag and createdAt.
func (r *SQLMessageRepository) Insert(ctx context.Context, message domain.Message) error {
	const query = `
INSERT INTO messages (` + messageColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT(id) DO NOTHING;`

	res, err := r.db.ExecContext(ctx, query,
		message.ID,
		nullableString(message.From),
		nullableString(message.To),
		message.ConversationID,
		message.Timestamp.UnixMilli(),
		message.Content,
		string(message.Type),
		boolToInt(message.IsOutbound),
		boolToInt(message.IsGroup),
		r.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("%w: insert message %q: %w", customErrors.ErrPersistence, message.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.log.Debug("Message already stored, skipping", "id", message.ID)
	}
	return nil
}

func (r *SQLMessageRepository) Get(ctx context.Context, id string) (domain.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE id = ?;`

	message, err := scanMessage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Message{}, fmt.Errorf("%w: message %q", customErrors.ErrNotFound, id)
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: get message %q: %w", customErrors.ErrPersistence, id, err)
	}
	return message, nil
}

func (r *SQLMessageRepository) ListUnprocessed(ctx context.Context) ([]domain.Message, error) {
	const query = `
SELECT ` + messageColumns + `
FROM messages
WHERE processed = 0
ORDER BY timestamp ASC, id ASC;`

	return r.list(ctx, query)
}

func (r *SQLMessageRepository) CountUnprocessed(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE processed = 0;`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: count unprocessed: %w", customErrors.ErrPersistence, err)
	}
	return count, nil
}

// MarkProcessed flags a message as processed. Marking it again is a no-op.
func (r *SQLMessageRepository) MarkProcessed(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET processed = 1 WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("%w: mark processed %q: %w", customErrors.ErrPersistence, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: mark processed %q: %w", customErrors.ErrPersistence, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: message %q", customErrors.ErrNotFound, id)
	}
	return nil
}

func (r *SQLMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	const query = `
SELECT ` + messageColumns + `
FROM messages
WHERE conversation_id = ?
ORDER BY timestamp ASC, id ASC;`

	return r.list(ctx, query, conversationID)
}

func (r *SQLMessageRepository) list(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query messages: %w", customErrors.ErrPersistence, err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan message: %w", customErrors.ErrPersistence, err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate messages: %w", customErrors.ErrPersistence, err)
	}
	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (domain.Message, error) {
	var (
		message                        domain.Message
		from, to                       sql.NullString
		messageType                    string
		timestamp, createdAt           int64
		isOutbound, isGroup, processed int
	)
	if err := row.Scan(
		&message.ID, &from, &to, &message.ConversationID, &timestamp, &message.Content,
		&messageType, &isOutbound, &isGroup, &processed, &createdAt,
	); err != nil {
		return domain.Message{}, err
	}
	if from.Valid {
		message.From = &from.String
	}
	if to.Valid {
		message.To = &to.String
	}
	message.Type = domain.MessageType(messageType)
	message.Timestamp = time.UnixMilli(timestamp).UTC()
	message.CreatedAt = time.UnixMilli(createdAt).UTC()
	message.IsOutbound = isOutbound == 1
	message.IsGroup = isGroup == 1
	message.Processed = processed == 1
	return message, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func utcNow() time.Time {
	return time.Now().UTC()
}
