package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/ec-reservation/internal/outbox"
)

const outboxColumns = `id, event_type, payload, queue_name, created_at, processed_at, retry_count, last_error`

func (s *PostgresStore) Pending(ctx context.Context, limit, maxRetries int) ([]outbox.Message, error) {
	return s.queryOutbox(ctx,
		`SELECT `+outboxColumns+` FROM outbox_messages
		 WHERE processed_at IS NULL AND retry_count < $1
		 ORDER BY created_at, id
		 LIMIT $2`, maxRetries, limit)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox_messages SET processed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFoundMessage(id)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, lastError string) (int, error) {
	var retries int
	err := s.db.QueryRowContext(ctx,
		`UPDATE outbox_messages SET retry_count = retry_count + 1, last_error = $2
		 WHERE id = $1 RETURNING retry_count`, id, lastError).Scan(&retries)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, notFoundMessage(id)
	}
	return retries, err
}

func (s *PostgresStore) PruneProcessed(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox_messages WHERE processed_at IS NOT NULL AND processed_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Stats(ctx context.Context, maxRetries int) (outbox.Stats, error) {
	var st outbox.Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		     COUNT(*) FILTER (WHERE processed_at IS NULL AND retry_count < $1),
		     COUNT(*) FILTER (WHERE processed_at IS NOT NULL),
		     COUNT(*) FILTER (WHERE processed_at IS NULL AND retry_count >= $1)
		 FROM outbox_messages`, maxRetries).
		Scan(&st.Pending, &st.Processed, &st.DeadLettered)
	return st, err
}

func (s *PostgresStore) DeadLettered(ctx context.Context, maxRetries, limit int) ([]outbox.Message, error) {
	return s.queryOutbox(ctx,
		`SELECT `+outboxColumns+` FROM outbox_messages
		 WHERE processed_at IS NULL AND retry_count >= $1
		 ORDER BY created_at, id
		 LIMIT $2`, maxRetries, limit)
}

func (s *PostgresStore) queryOutbox(ctx context.Context, query string, args ...any) ([]outbox.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []outbox.Message
	for rows.Next() {
		var (
			m           outbox.Message
			processedAt sql.NullTime
			lastError   sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.EventType, &m.Payload, &m.QueueName, &m.CreatedAt,
			&processedAt, &m.RetryCount, &lastError); err != nil {
			return nil, err
		}
		if processedAt.Valid {
			t := processedAt.Time
			m.ProcessedAt = &t
		}
		if lastError.Valid {
			e := lastError.String
			m.LastError = &e
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
