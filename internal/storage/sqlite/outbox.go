package sqlite

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/events"
)

// ClaimOutbox leases up to limit unpublished messages that have not
// exhausted maxAttempts.
func (st *Store) ClaimOutbox(ctx context.Context, limit, maxAttempts int) ([]events.Message, error) {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := st.now()
	leaseExpiry := micros(now.Add(-events.ClaimLease))
	rows, err := tx.QueryContext(ctx,
		`SELECT id, session_id, event_type, payload, attempts
		 FROM outbox
		 WHERE published_at IS NULL
		   AND attempts < ?
		   AND (claimed_at IS NULL OR claimed_at < ?)
		 ORDER BY id
		 LIMIT ?`,
		maxAttempts, leaseExpiry, limit)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var (
		msgs []events.Message
		ids  []any
	)
	for rows.Next() {
		var (
			m       events.Message
			payload string
		)
		if err := rows.Scan(&m.ID, &m.SessionID, &m.EventType, &payload, &m.Attempts); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}
		m.Payload = []byte(payload)
		msgs = append(msgs, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}

	args := append([]any{micros(now)}, ids...)
	if _, err := tx.ExecContext(ctx,
		`UPDATE outbox SET claimed_at = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...); err != nil {
		return nil, fmt.Errorf("claiming outbox rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return msgs, nil
}

// MarkPublished records the messages as delivered.
func (st *Store) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{micros(st.now())}
	for _, id := range ids {
		args = append(args, id)
	}
	if _, err := st.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...); err != nil {
		return fmt.Errorf("marking outbox published: %w", err)
	}
	return nil
}

// ReleaseOutbox drops the leases and counts a failed attempt.
func (st *Store) ReleaseOutbox(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := st.db.ExecContext(ctx,
		`UPDATE outbox SET claimed_at = NULL, attempts = attempts + 1 WHERE id IN (`+placeholders(len(ids))+`)`,
		args...); err != nil {
		return fmt.Errorf("releasing outbox claims: %w", err)
	}
	return nil
}
