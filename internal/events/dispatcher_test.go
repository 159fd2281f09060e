package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/storage/memory"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	fail   error
	topics []string
	msgs   []kafka.Message
}

func (p *recordingProducer) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if p.fail != nil {
		return p.fail
	}
	p.topics = append(p.topics, topic)
	p.msgs = append(p.msgs, msgs...)
	return nil
}

func startSession(t *testing.T, st *memory.Store) *workout.Session {
	t.Helper()
	ctx := context.Background()
	plan := &workout.Plan{ID: uuid.New(), OwnerID: 1, Exercises: []workout.PlanExercise{
		{ExerciseRefID: uuid.New(), Sets: []workout.PlanSet{{TargetWeight: 30, TargetReps: 10}}},
	}}
	require.NoError(t, st.UpsertPlan(ctx, plan))
	eng := workout.NewEngine(st, st, workout.SystemClock{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := eng.StartSession(ctx, 1, plan.ID)
	require.NoError(t, err)
	return s
}

func newDispatcher(st *memory.Store, p events.Producer, maxAttempts int) *events.Dispatcher {
	return events.NewDispatcher(st, p, events.DispatcherConfig{
		Topic:        "liftlog.sessions",
		PollInterval: time.Second,
		BatchSize:    10,
		MaxAttempts:  maxAttempts,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// TestProcessBatchPublishesKeyedBySession verifies claimed events are written
// to the topic keyed by session id and are not delivered twice.
func TestProcessBatchPublishesKeyedBySession(t *testing.T) {
	st := memory.New()
	s := startSession(t, st)
	p := &recordingProducer{}
	d := newDispatcher(st, p, 3)

	n, err := d.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, p.msgs, 2)
	for _, m := range p.msgs {
		require.Equal(t, s.ID.String(), string(m.Key))
	}
	require.Equal(t, "liftlog.sessions", p.topics[0])

	var ev workout.Event
	require.NoError(t, json.Unmarshal(p.msgs[0].Value, &ev))
	require.Equal(t, workout.EventSessionStarted, ev.Type)
	require.Equal(t, 1, ev.OwnerID)

	n, err = d.ProcessBatch(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
}

// TestProcessBatchReleasesOnFailure verifies a failed publish releases the
// claim and stops retrying after the attempt limit.
func TestProcessBatchReleasesOnFailure(t *testing.T) {
	st := memory.New()
	startSession(t, st)
	p := &recordingProducer{fail: errors.New("broker unavailable")}
	d := newDispatcher(st, p, 2)
	ctx := context.Background()

	_, err := d.ProcessBatch(ctx)
	require.ErrorContains(t, err, "broker unavailable")
	_, err = d.ProcessBatch(ctx)
	require.Error(t, err)

	// Both messages have now used their two attempts.
	msgs, err := st.ClaimOutbox(ctx, 10, 2)
	require.NoError(t, err)
	require.Empty(t, msgs)

	p.fail = nil
	msgs, err = st.ClaimOutbox(ctx, 10, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, 2, msgs[0].Attempts)
}

// cancellingProducer cancels the dispatch context mid-publish, as a shutdown would.
type cancellingProducer struct {
	cancel context.CancelFunc
}

func (p *cancellingProducer) WriteMessages(ctx context.Context, _ string, _ ...kafka.Message) error {
	p.cancel()
	return ctx.Err()
}

// contextBoundSource fails calls on a cancelled context like a database driver.
type contextBoundSource struct {
	*memory.Store
}

func (s contextBoundSource) MarkPublished(ctx context.Context, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.MarkPublished(ctx, ids)
}

func (s contextBoundSource) ReleaseOutbox(ctx context.Context, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.ReleaseOutbox(ctx, ids)
}

// TestProcessBatchReleasesAfterShutdown verifies claims are released and the
// attempt counted even when the context is cancelled during publishing.
func TestProcessBatchReleasesAfterShutdown(t *testing.T) {
	st := memory.New()
	startSession(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := events.NewDispatcher(contextBoundSource{st}, &cancellingProducer{cancel: cancel}, events.DispatcherConfig{
		Topic:        "liftlog.sessions",
		PollInterval: time.Second,
		BatchSize:    10,
		MaxAttempts:  3,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := d.ProcessBatch(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotContains(t, err.Error(), "releasing claims")

	// Released rows are claimable again right away, with one attempt used.
	msgs, err := st.ClaimOutbox(context.Background(), 10, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, 1, msgs[0].Attempts)
}

// TestEncode verifies events become messages carrying their JSON form.
func TestEncode(t *testing.T) {
	id := uuid.New()
	dur := 42
	msgs, err := events.Encode([]workout.Event{{
		Type:            workout.EventSessionFinished,
		SessionID:       id,
		OwnerID:         3,
		DurationMinutes: &dur,
		OccurredAt:      time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, id, msgs[0].SessionID)
	require.Equal(t, "session.finished", msgs[0].EventType)
	require.JSONEq(t, `{"type":"session.finished","session_id":"`+id.String()+`","owner_id":3,"duration_minutes":42,"occurred_at":"2026-05-01T12:00:00Z"}`, string(msgs[0].Payload))
}
