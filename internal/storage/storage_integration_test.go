//go:build integration

package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("liftlog"),
		postgrescontainer.WithUsername("liftlog"),
		postgrescontainer.WithPassword("liftlog"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dsn, "../../migrations"))

	db, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func seedPlan(t *testing.T, db *DB, owner int, sets ...int) *workout.Plan {
	t.Helper()
	ctx := context.Background()
	p := &workout.Plan{ID: uuid.New(), OwnerID: owner, Name: "lower body"}
	for i, n := range sets {
		ex := workout.CatalogExercise{ID: uuid.New(), Name: "squat variation", MuscleGroup: "legs"}
		require.NoError(t, db.UpsertCatalogExercise(ctx, ex))
		pe := workout.PlanExercise{ExerciseRefID: ex.ID, Notes: "brace"}
		for j := 0; j < n; j++ {
			pe.Sets = append(pe.Sets, workout.PlanSet{TargetWeight: 60 + float64(i)*2.5, TargetReps: 5 + j})
		}
		p.Exercises = append(p.Exercises, pe)
	}
	require.NoError(t, db.UpsertPlan(ctx, p))
	return p
}

// TestPostgresProgression runs a full session through the engine against
// PostgreSQL and checks the persisted aggregate after every step.
func TestPostgresProgression(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	owner, err := db.GetOrCreateUser(ctx, "lifter@example.com", "Lifter")
	require.NoError(t, err)
	plan := seedPlan(t, db, owner, 2, 1)

	got, err := db.GetPlan(ctx, plan.ID, owner)
	require.NoError(t, err)
	require.Len(t, got.Exercises, 2)
	require.Len(t, got.Exercises[0].Sets, 2)
	require.Equal(t, "legs", got.Exercises[0].MuscleGroup)
	_, err = db.GetPlan(ctx, plan.ID, owner+1)
	require.ErrorIs(t, err, workout.ErrPlanForbidden)

	eng := workout.NewEngine(db, db, workout.SystemClock{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)

	loaded, err := db.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, workout.StatusInProgress, loaded.Exercises[0].Status)
	require.Equal(t, 2, loaded.Exercises[0].Sets[1].SetNumber)
	require.Equal(t, "brace", loaded.Exercises[0].Notes)
	require.Equal(t, "squat variation", loaded.Exercises[0].Name)
	require.Equal(t, "legs", loaded.Exercises[0].MuscleGroup)
	require.Equal(t, "squat variation", s.Exercises[1].Name)

	for _, set := range loaded.Exercises[0].Sets {
		_, err = eng.CompleteSet(ctx, s.ID, owner, set.ID, 5, nil)
		require.NoError(t, err)
	}
	s, err = eng.AddSet(ctx, s.ID, loaded.Exercises[1].ID, owner, 70, 3)
	require.NoError(t, err)
	require.Equal(t, workout.StatusInProgress, s.Exercises[1].Status)
	require.Len(t, s.Exercises[1].Sets, 2)

	for _, set := range s.Exercises[1].Sets {
		s, err = eng.CompleteSet(ctx, s.ID, owner, set.ID, 3, nil)
		require.NoError(t, err)
	}
	require.True(t, s.IsFinished)

	final, err := db.Get(ctx, s.ID)
	require.NoError(t, err)
	require.True(t, final.IsFinished)
	require.NotNil(t, final.DurationMinutes)
	require.Equal(t, 70.0, *final.Exercises[1].Sets[1].ActualWeight)

	active, err := db.Active(ctx, owner)
	require.NoError(t, err)
	require.Nil(t, active)

	msgs, err := db.ClaimOutbox(ctx, 100, 3)
	require.NoError(t, err)
	require.NotEmpty(t, msgs)
	require.Equal(t, "session.started", msgs[0].EventType)
	again, err := db.ClaimOutbox(ctx, 100, 3)
	require.NoError(t, err)
	require.Empty(t, again)
	require.NoError(t, db.MarkPublished(ctx, []int64{msgs[0].ID}))

	require.NoError(t, eng.DeleteSession(ctx, s.ID, owner))
	_, err = db.Get(ctx, s.ID)
	require.ErrorIs(t, err, workout.ErrSessionNotFound)
}

// TestPostgresConcurrentStart verifies the partial unique index lets exactly
// one of many concurrent starts win.
func TestPostgresConcurrentStart(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	owner, err := db.GetOrCreateUser(ctx, "racer@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, db, owner, 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, _ := db.GetPlan(ctx, plan.ID, owner)
			s := &workout.Session{ID: uuid.New(), OwnerID: owner, PlanID: &p.ID, ClockIn: workout.SystemClock{}.Now()}
			err := db.Create(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, workout.ErrActiveSessionExists):
				conflicts++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, 7, conflicts)
	sessions, err := db.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}

// TestPostgresConcurrentCompletion verifies two racing completions of the
// last two sets advance the session exactly once.
func TestPostgresConcurrentCompletion(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	owner, err := db.GetOrCreateUser(ctx, "pair@example.com", "")
	require.NoError(t, err)
	plan := seedPlan(t, db, owner, 2, 1, 1)

	eng := workout.NewEngine(db, db, workout.SystemClock{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := eng.StartSession(ctx, owner, plan.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, set := range s.Exercises[0].Sets {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := eng.CompleteSet(ctx, s.ID, owner, id, 5, nil)
			assert.NoError(t, err)
		}(set.ID)
	}
	wg.Wait()

	got, err := db.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, workout.StatusFinished, got.Exercises[0].Status)
	require.Equal(t, workout.StatusInProgress, got.Exercises[1].Status)
	require.Equal(t, workout.StatusNotStarted, got.Exercises[2].Status)
}
