package memory

import (
	"context"
	"sort"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// GetOrCreateUser returns the id for login, allocating the next id on first sight.
func (st *Store) GetOrCreateUser(_ context.Context, login, _ string) (int, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id, ok := st.users[login]; ok {
		return id, nil
	}
	id := len(st.users) + 1
	st.users[login] = id
	return id, nil
}

// GetPlan returns a copy of the plan with catalog names filled in.
func (st *Store) GetPlan(_ context.Context, planID uuid.UUID, ownerID int) (*workout.Plan, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	p, ok := st.plans[planID]
	if !ok {
		return nil, workout.ErrPlanNotFound
	}
	if p.OwnerID != ownerID {
		return nil, workout.ErrPlanForbidden
	}
	c := clonePlan(p)
	for i := range c.Exercises {
		if ex, ok := st.catalog[c.Exercises[i].ExerciseRefID]; ok {
			c.Exercises[i].Name = ex.Name
			c.Exercises[i].MuscleGroup = ex.MuscleGroup
		}
	}
	return c, nil
}

// UpsertPlan stores a plan snapshot, replacing any plan with the same id.
func (st *Store) UpsertPlan(_ context.Context, p *workout.Plan) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.plans[p.ID] = clonePlan(p)
	return nil
}

// UpsertCatalogExercise stores a catalog entry.
func (st *Store) UpsertCatalogExercise(_ context.Context, ex workout.CatalogExercise) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.catalog[ex.ID] = ex
	return nil
}

// ListCatalog returns the catalog ordered by name.
func (st *Store) ListCatalog(_ context.Context) ([]workout.CatalogExercise, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]workout.CatalogExercise, 0, len(st.catalog))
	for _, ex := range st.catalog {
		out = append(out, ex)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func clonePlan(p *workout.Plan) *workout.Plan {
	c := *p
	c.Exercises = make([]workout.PlanExercise, len(p.Exercises))
	for i, pe := range p.Exercises {
		pe.Sets = append([]workout.PlanSet(nil), pe.Sets...)
		c.Exercises[i] = pe
	}
	return &c
}
