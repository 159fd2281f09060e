// Package events delivers session lifecycle events from the storage outbox to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// ClaimLease is how long a claimed outbox row stays invisible to other
// dispatchers before it may be claimed again.
const ClaimLease = 2 * time.Minute

// Message is one outbox row.
type Message struct {
	ID        int64
	SessionID uuid.UUID
	EventType string
	Payload   json.RawMessage
	Attempts  int
}

// Source is the outbox side of a storage backend.
type Source interface {
	// ClaimOutbox leases up to limit unpublished messages that have been
	// attempted fewer than maxAttempts times, oldest first.
	ClaimOutbox(ctx context.Context, limit, maxAttempts int) ([]Message, error)
	// MarkPublished records successful delivery.
	MarkPublished(ctx context.Context, ids []int64) error
	// ReleaseOutbox drops the lease and counts one failed attempt.
	ReleaseOutbox(ctx context.Context, ids []int64) error
}

// Encode converts events drained from an aggregate into outbox messages.
// IDs are assigned by the store.
func Encode(evs []workout.Event) ([]Message, error) {
	msgs := make([]Message, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encoding %s event: %w", ev.Type, err)
		}
		msgs = append(msgs, Message{
			SessionID: ev.SessionID,
			EventType: string(ev.Type),
			Payload:   payload,
		})
	}
	return msgs, nil
}
