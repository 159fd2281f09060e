package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetPlan returns the plan snapshot with exercises and sets in plan order.
func (db *DB) GetPlan(ctx context.Context, planID uuid.UUID, ownerID int) (*workout.Plan, error) {
	p := &workout.Plan{ID: planID}
	err := db.Pool.QueryRow(ctx,
		`SELECT owner_id, name, description FROM plans WHERE id = $1`, planID,
	).Scan(&p.OwnerID, &p.Name, &p.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, workout.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying plan: %w", err)
	}
	if p.OwnerID != ownerID {
		return nil, workout.ErrPlanForbidden
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT pe.order_index, pe.exercise_ref_id, c.name, c.muscle_group, pe.notes, ps.target_weight, ps.target_reps
		 FROM plan_exercises pe
		 JOIN exercises c ON c.id = pe.exercise_ref_id
		 LEFT JOIN plan_sets ps ON ps.plan_id = pe.plan_id AND ps.order_index = pe.order_index
		 WHERE pe.plan_id = $1
		 ORDER BY pe.order_index, ps.set_number`, planID)
	if err != nil {
		return nil, fmt.Errorf("querying plan exercises: %w", err)
	}
	defer rows.Close()

	last := -1
	for rows.Next() {
		var (
			orderIndex int
			pe         workout.PlanExercise
			weight     *float64
			reps       *int
		)
		if err := rows.Scan(&orderIndex, &pe.ExerciseRefID, &pe.Name, &pe.MuscleGroup, &pe.Notes, &weight, &reps); err != nil {
			return nil, fmt.Errorf("scanning plan exercise: %w", err)
		}
		if orderIndex != last {
			p.Exercises = append(p.Exercises, pe)
			last = orderIndex
		}
		// An exercise without sets comes back as one row of NULLs.
		if weight != nil && reps != nil {
			cur := &p.Exercises[len(p.Exercises)-1]
			cur.Sets = append(cur.Sets, workout.PlanSet{TargetWeight: *weight, TargetReps: *reps})
		}
	}
	return p, rows.Err()
}

// UpsertPlan replaces a plan and its exercises and sets in one transaction.
func (db *DB) UpsertPlan(ctx context.Context, p *workout.Plan) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO plans (id, owner_id, name, description) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id, name = EXCLUDED.name, description = EXCLUDED.description`,
		p.ID, p.OwnerID, p.Name, p.Description)
	if err != nil {
		return fmt.Errorf("upserting plan: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM plan_exercises WHERE plan_id = $1`, p.ID); err != nil {
		return fmt.Errorf("clearing plan exercises: %w", err)
	}

	if len(p.Exercises) > 0 {
		args := make([]any, 0, len(p.Exercises)*4)
		var setArgs []any
		sets := 0
		for i, pe := range p.Exercises {
			args = append(args, p.ID, i, pe.ExerciseRefID, pe.Notes)
			for j, ps := range pe.Sets {
				setArgs = append(setArgs, p.ID, i, j+1, ps.TargetWeight, ps.TargetReps)
				sets++
			}
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO plan_exercises (plan_id, order_index, exercise_ref_id, notes) VALUES `+valuesClause(len(p.Exercises), 4),
			args...)
		if err != nil {
			return fmt.Errorf("inserting plan exercises: %w", err)
		}
		if sets > 0 {
			_, err = tx.Exec(ctx,
				`INSERT INTO plan_sets (plan_id, order_index, set_number, target_weight, target_reps) VALUES `+valuesClause(sets, 5),
				setArgs...)
			if err != nil {
				return fmt.Errorf("inserting plan sets: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing plan: %w", err)
	}
	return nil
}
