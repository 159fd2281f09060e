package memory

import (
	"context"
	"slices"

	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/workout"
)

func (st *Store) appendOutboxLocked(evs []workout.Event) error {
	msgs, err := events.Encode(evs)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		st.nextID++
		m.ID = st.nextID
		st.outbox = append(st.outbox, &outboxRow{Message: m})
	}
	return nil
}

// ClaimOutbox leases up to limit unpublished messages.
func (st *Store) ClaimOutbox(_ context.Context, limit, maxAttempts int) ([]events.Message, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	var out []events.Message
	for _, row := range st.outbox {
		if len(out) == limit {
			break
		}
		if row.publishedAt != nil || row.Attempts >= maxAttempts {
			continue
		}
		if row.claimedAt != nil && now.Sub(*row.claimedAt) < events.ClaimLease {
			continue
		}
		claimed := now
		row.claimedAt = &claimed
		out = append(out, row.Message)
	}
	return out, nil
}

// MarkPublished records the messages as delivered.
func (st *Store) MarkPublished(_ context.Context, ids []int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	for _, row := range st.outbox {
		if slices.Contains(ids, row.ID) {
			published := now
			row.publishedAt = &published
		}
	}
	return nil
}

// ReleaseOutbox drops the leases and counts a failed attempt.
func (st *Store) ReleaseOutbox(_ context.Context, ids []int64) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	for _, row := range st.outbox {
		if slices.Contains(ids, row.ID) {
			row.claimedAt = nil
			row.Attempts++
		}
	}
	return nil
}

// Events returns every outbox message recorded so far, in insertion order.
func (st *Store) Events() []events.Message {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]events.Message, len(st.outbox))
	for i, row := range st.outbox {
		out[i] = row.Message
	}
	return out
}
