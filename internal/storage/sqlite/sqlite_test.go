package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "liftlog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedPlan(t *testing.T, st *Store, owner int, sets ...int) *workout.Plan {
	t.Helper()
	ctx := context.Background()
	p := &workout.Plan{ID: uuid.New(), OwnerID: owner, Name: "upper", Description: "bench focus"}
	for i, n := range sets {
		ex := workout.CatalogExercise{ID: uuid.New(), Name: "bench press", MuscleGroup: "chest"}
		require.NoError(t, st.UpsertCatalogExercise(ctx, ex))
		pe := workout.PlanExercise{ExerciseRefID: ex.ID, Notes: "pause reps"}
		for j := 0; j < n; j++ {
			pe.Sets = append(pe.Sets, workout.PlanSet{TargetWeight: 80 + float64(i), TargetReps: 5 + j})
		}
		p.Exercises = append(p.Exercises, pe)
	}
	require.NoError(t, st.UpsertPlan(ctx, p))
	return p
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

// TestOpenIsIdempotent verifies reopening an existing database does not
// reapply migrations.
func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "liftlog.db")
	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

// TestGetOrCreateUser verifies a login keeps its id across calls.
func TestGetOrCreateUser(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	a, err := st.GetOrCreateUser(ctx, "a@example.com", "A")
	require.NoError(t, err)
	b, err := st.GetOrCreateUser(ctx, "b@example.com", "")
	require.NoError(t, err)
	again, err := st.GetOrCreateUser(ctx, "a@example.com", "")
	require.NoError(t, err)

	require.NotEqual(t, a, b)
	require.Equal(t, a, again)
}

// TestPlanRoundTrip verifies plans read back in order with their sets and
// enforce ownership.
func TestPlanRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	owner, err := st.GetOrCreateUser(ctx, "owner@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, st, owner, 3, 0, 1)

	got, err := st.GetPlan(ctx, plan.ID, owner)
	require.NoError(t, err)
	require.Equal(t, "bench focus", got.Description)
	require.Len(t, got.Exercises, 3)
	require.Len(t, got.Exercises[0].Sets, 3)
	require.Empty(t, got.Exercises[1].Sets)
	require.Equal(t, 7, got.Exercises[0].Sets[2].TargetReps)
	require.Equal(t, plan.Exercises[2].ExerciseRefID, got.Exercises[2].ExerciseRefID)
	require.Equal(t, "bench press", got.Exercises[0].Name)
	require.Equal(t, "chest", got.Exercises[0].MuscleGroup)

	_, err = st.GetPlan(ctx, plan.ID, owner+1)
	require.ErrorIs(t, err, workout.ErrPlanForbidden)
	_, err = st.GetPlan(ctx, uuid.New(), owner)
	require.ErrorIs(t, err, workout.ErrPlanNotFound)

	catalog, err := st.ListCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 3)
}

// TestSessionLifecycle drives the engine over the SQLite store and checks
// what is read back from disk.
func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	owner, err := st.GetOrCreateUser(ctx, "lifter@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, st, owner, 1, 2)
	clock := &stepClock{now: time.Date(2026, 4, 1, 6, 30, 0, 0, time.UTC)}
	eng := workout.NewEngine(st, st, clock, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)

	_, err = eng.StartSession(ctx, owner, plan.ID)
	require.ErrorIs(t, err, workout.ErrActiveSessionExists)

	loaded, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, clock.now, loaded.ClockIn)
	require.Equal(t, "pause reps", loaded.Exercises[0].Notes)
	require.Equal(t, "bench press", loaded.Exercises[0].Name)
	require.Equal(t, "chest", loaded.Exercises[1].MuscleGroup)
	require.Equal(t, "bench press", s.Exercises[0].Name)

	clock.now = clock.now.Add(5 * time.Minute)
	s, err = eng.CompleteSet(ctx, s.ID, owner, loaded.Exercises[0].Sets[0].ID, 5, nil)
	require.NoError(t, err)
	require.Equal(t, workout.StatusFinished, s.Exercises[0].Status)
	require.Equal(t, workout.StatusInProgress, s.Exercises[1].Status)

	s, err = eng.SkipExercise(ctx, s.ID, s.Exercises[1].ID, owner)
	require.NoError(t, err)
	require.Nil(t, s.Current())

	clock.now = clock.now.Add(40 * time.Minute)
	s, err = eng.FinishSession(ctx, s.ID, owner)
	require.NoError(t, err)

	final, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, final.IsFinished)
	require.Equal(t, 45, *final.DurationMinutes)
	require.Equal(t, clock.now, *final.ClockOut)
	set := final.Exercises[0].Sets[0]
	require.Equal(t, 80.0, *set.ActualWeight)
	require.Equal(t, 5, *set.ActualReps)
	require.Equal(t, loaded.ClockIn.Add(5*time.Minute), *set.CompletedAt)

	active, err := st.Active(ctx, owner)
	require.NoError(t, err)
	require.Nil(t, active)

	next, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)
	sessions, err := st.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, next.ID, sessions[0].ID)
}

// TestUpdateRollsBackOnError verifies nothing is written when the mutation fails.
func TestUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	owner, err := st.GetOrCreateUser(ctx, "x@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, st, owner, 1)
	eng := workout.NewEngine(st, st, workout.SystemClock{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)

	_, err = st.Update(ctx, s.ID, func(s *workout.Session) error {
		s.Exercises[0].Status = workout.StatusFinished
		return workout.ErrExerciseFinished
	})
	require.ErrorIs(t, err, workout.ErrExerciseFinished)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, workout.StatusInProgress, got.Exercises[0].Status)

	_, err = st.Update(ctx, uuid.New(), func(*workout.Session) error { return nil })
	require.ErrorIs(t, err, workout.ErrSessionNotFound)
}

// TestCrossSessionLookup verifies set and exercise ownership lookups.
func TestCrossSessionLookup(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	owner, err := st.GetOrCreateUser(ctx, "y@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, st, owner, 1)
	eng := workout.NewEngine(st, st, workout.SystemClock{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)

	id, err := st.SessionOfSet(ctx, s.Exercises[0].Sets[0].ID)
	require.NoError(t, err)
	require.Equal(t, s.ID, id)
	id, err = st.SessionOfExercise(ctx, s.Exercises[0].ID)
	require.NoError(t, err)
	require.Equal(t, s.ID, id)

	_, err = st.SessionOfSet(ctx, uuid.New())
	require.ErrorIs(t, err, workout.ErrSetNotFound)
	_, err = st.SessionOfExercise(ctx, uuid.New())
	require.ErrorIs(t, err, workout.ErrExerciseNotFound)

	require.NoError(t, st.Delete(ctx, s.ID))
	_, err = st.SessionOfSet(ctx, s.Exercises[0].Sets[0].ID)
	require.ErrorIs(t, err, workout.ErrSetNotFound)
}

// TestOutboxClaimAndRelease verifies lease, release and publish bookkeeping.
func TestOutboxClaimAndRelease(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	owner, err := st.GetOrCreateUser(ctx, "z@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, st, owner, 1)
	eng := workout.NewEngine(st, st, workout.SystemClock{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)

	msgs, err := st.ClaimOutbox(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, s.ID, msgs[0].SessionID)
	require.Equal(t, "session.started", msgs[0].EventType)
	require.Contains(t, string(msgs[0].Payload), `"type":"session.started"`)

	none, err := st.ClaimOutbox(ctx, 10, 3)
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, st.ReleaseOutbox(ctx, []int64{msgs[1].ID}))
	require.NoError(t, st.MarkPublished(ctx, []int64{msgs[0].ID}))

	retry, err := st.ClaimOutbox(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	require.Equal(t, msgs[1].ID, retry[0].ID)
	require.Equal(t, 1, retry[0].Attempts)
}
