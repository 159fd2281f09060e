package seed

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/liftlog/internal/storage/memory"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
owner: alice@example.com
catalog:
  - id: 5b7f3f0e-8a51-4c1e-9d39-3f1d2b1c7a01
    name: Back Squat
    muscle_group: legs
  - id: 5b7f3f0e-8a51-4c1e-9d39-3f1d2b1c7a02
    name: Romanian Deadlift
    muscle_group: hamstrings
    description: hip hinge
plans:
  - name: Leg Day
    description: heavy lower
    exercises:
      - exercise_id: 5b7f3f0e-8a51-4c1e-9d39-3f1d2b1c7a01
        notes: belt on top set
        sets:
          - {weight: 100, reps: 5}
          - {weight: 110, reps: 3}
      - exercise_id: 5b7f3f0e-8a51-4c1e-9d39-3f1d2b1c7a02
        sets:
          - {weight: 80, reps: 8}
`

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// TestApplyFixture verifies catalog and plans land in the store in order and
// a session can be started from the seeded plan.
func TestApplyFixture(t *testing.T) {
	ctx := context.Background()
	f, err := Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	st := memory.New()
	sum, err := Apply(ctx, st, f, discard)
	require.NoError(t, err)
	require.Equal(t, Summary{OwnerID: 1, Exercises: 2, Plans: 1}, sum)

	catalog, err := st.ListCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)

	plan, err := st.GetPlan(ctx, f.Plans[0].ID, sum.OwnerID)
	require.NoError(t, err)
	require.Equal(t, "heavy lower", plan.Description)
	require.Len(t, plan.Exercises, 2)
	require.Equal(t, "belt on top set", plan.Exercises[0].Notes)
	require.Equal(t, []workout.PlanSet{{TargetWeight: 100, TargetReps: 5}, {TargetWeight: 110, TargetReps: 3}}, plan.Exercises[0].Sets)

	eng := workout.NewEngine(st, st, workout.SystemClock{}, discard)
	s, err := eng.StartSession(ctx, sum.OwnerID, plan.ID)
	require.NoError(t, err)
	require.Equal(t, 2, s.Exercises[0].Sets[1].SetNumber)
	require.Equal(t, 110.0, s.Exercises[0].Sets[1].TargetWeight)
}

// TestDerivedIDsAreStable verifies reparsing yields the same plan id so
// reseeding updates rather than duplicates.
func TestDerivedIDsAreStable(t *testing.T) {
	a, err := Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)
	b, err := Parse(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	require.NotEqual(t, uuid.Nil, a.Plans[0].ID)
	require.Equal(t, a.Plans[0].ID, b.Plans[0].ID)
}

// TestParseRejects verifies malformed fixtures are refused.
func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no owner", "plans: []\n"},
		{"unknown field", "owner: a\nfoo: 1\n"},
		{"catalog without name", "owner: a\ncatalog:\n  - muscle_group: legs\n"},
		{"plan without name", "owner: a\nplans:\n  - exercises: []\n"},
		{"exercise without id", "owner: a\nplans:\n  - name: p\n    exercises:\n      - sets: []\n"},
		{"zero reps", "owner: a\nplans:\n  - name: p\n    exercises:\n      - exercise_id: 5b7f3f0e-8a51-4c1e-9d39-3f1d2b1c7a01\n        sets: [{weight: 10, reps: 0}]\n"},
		{"bad uuid", "owner: a\ncatalog:\n  - id: nope\n    name: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.yaml))
			require.Error(t, err)
		})
	}
}
