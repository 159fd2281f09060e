package workout

import (
	"context"

	"github.com/google/uuid"
)

// Plan is an immutable snapshot of a user-authored workout template.
type Plan struct {
	ID          uuid.UUID      `json:"id"`
	OwnerID     int            `json:"owner_id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Exercises   []PlanExercise `json:"exercises"`
}

// PlanExercise is one exercise of a plan, in plan order. Name and MuscleGroup
// are filled from the catalog when the plan is read.
type PlanExercise struct {
	ExerciseRefID uuid.UUID `json:"exercise_id"`
	Name          string    `json:"name,omitempty"`
	MuscleGroup   string    `json:"muscle_group,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Sets          []PlanSet `json:"sets"`
}

// PlanSet is a target weight/reps pair.
type PlanSet struct {
	TargetWeight float64 `json:"target_weight"`
	TargetReps   int     `json:"target_reps"`
}

// PlanReader reads plan snapshots and the exercise catalog they reference.
type PlanReader interface {
	// GetPlan returns ErrPlanNotFound when the plan does not exist and
	// ErrPlanForbidden when it is owned by someone other than ownerID.
	GetPlan(ctx context.Context, planID uuid.UUID, ownerID int) (*Plan, error)
	// ListCatalog returns every catalog exercise ordered by name.
	ListCatalog(ctx context.Context) ([]CatalogExercise, error)
}

// CatalogExercise is read-only reference data a session exercise points to
// through ExerciseRefID.
type CatalogExercise struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	MuscleGroup string    `json:"muscle_group,omitempty"`
	Description string    `json:"description,omitempty"`
}
