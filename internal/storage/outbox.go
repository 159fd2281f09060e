package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/events"
)

// ClaimOutbox leases a batch of unpublished events. SKIP LOCKED lets several
// dispatchers poll the same table without blocking each other.
func (db *DB) ClaimOutbox(ctx context.Context, limit, maxAttempts int) ([]events.Message, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id, session_id, event_type, payload, attempts
		 FROM outbox
		 WHERE published_at IS NULL
		   AND attempts < $2
		   AND (claimed_at IS NULL OR claimed_at < NOW() - make_interval(secs => $3))
		 ORDER BY id
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED`,
		limit, maxAttempts, events.ClaimLease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	var (
		msgs []events.Message
		ids  []int64
	)
	for rows.Next() {
		var m events.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.EventType, &m.Payload, &m.Attempts); err != nil {
			return nil, fmt.Errorf("scanning outbox row: %w", err)
		}
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

	if _, err := tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
		return nil, fmt.Errorf("claiming outbox rows: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}
	return msgs, nil
}

// MarkPublished records delivery of the given events.
func (db *DB) MarkPublished(ctx context.Context, ids []int64) error {
	if _, err := db.Pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("marking outbox published: %w", err)
	}
	return nil
}

// ReleaseOutbox clears the lease of failed events and counts the attempt.
func (db *DB) ReleaseOutbox(ctx context.Context, ids []int64) error {
	if _, err := db.Pool.Exec(ctx,
		`UPDATE outbox SET claimed_at = NULL, attempts = attempts + 1 WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("releasing outbox claims: %w", err)
	}
	return nil
}
