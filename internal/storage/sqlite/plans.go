package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// GetPlan returns the plan snapshot with catalog names, exercises and sets in plan order.
func (st *Store) GetPlan(ctx context.Context, planID uuid.UUID, ownerID int) (*workout.Plan, error) {
	p := &workout.Plan{ID: planID}
	err := st.db.QueryRowContext(ctx,
		`SELECT owner_id, name, description FROM plans WHERE id = ?`, planID,
	).Scan(&p.OwnerID, &p.Name, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, workout.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying plan: %w", err)
	}
	if p.OwnerID != ownerID {
		return nil, workout.ErrPlanForbidden
	}

	rows, err := st.db.QueryContext(ctx,
		`SELECT pe.order_index, pe.exercise_ref_id, c.name, c.muscle_group, pe.notes, ps.target_weight, ps.target_reps
		 FROM plan_exercises pe
		 JOIN exercises c ON c.id = pe.exercise_ref_id
		 LEFT JOIN plan_sets ps ON ps.plan_id = pe.plan_id AND ps.order_index = pe.order_index
		 WHERE pe.plan_id = ?
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
			weight     sql.NullFloat64
			reps       sql.NullInt64
		)
		if err := rows.Scan(&orderIndex, &pe.ExerciseRefID, &pe.Name, &pe.MuscleGroup, &pe.Notes, &weight, &reps); err != nil {
			return nil, fmt.Errorf("scanning plan exercise: %w", err)
		}
		if orderIndex != last {
			p.Exercises = append(p.Exercises, pe)
			last = orderIndex
		}
		if weight.Valid && reps.Valid {
			cur := &p.Exercises[len(p.Exercises)-1]
			cur.Sets = append(cur.Sets, workout.PlanSet{TargetWeight: weight.Float64, TargetReps: int(reps.Int64)})
		}
	}
	return p, rows.Err()
}

// UpsertPlan replaces a plan with its exercises and sets.
func (st *Store) UpsertPlan(ctx context.Context, p *workout.Plan) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO plans (id, owner_id, name, description) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET owner_id = excluded.owner_id, name = excluded.name, description = excluded.description`,
		p.ID, p.OwnerID, p.Name, p.Description)
	if err != nil {
		return fmt.Errorf("upserting plan: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_exercises WHERE plan_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clearing plan exercises: %w", err)
	}
	for i, pe := range p.Exercises {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO plan_exercises (plan_id, order_index, exercise_ref_id, notes) VALUES (?, ?, ?, ?)`,
			p.ID, i, pe.ExerciseRefID, pe.Notes); err != nil {
			return fmt.Errorf("inserting plan exercise: %w", err)
		}
		for j, ps := range pe.Sets {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO plan_sets (plan_id, order_index, set_number, target_weight, target_reps) VALUES (?, ?, ?, ?, ?)`,
				p.ID, i, j+1, ps.TargetWeight, ps.TargetReps); err != nil {
				return fmt.Errorf("inserting plan set: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing plan: %w", err)
	}
	return nil
}

// UpsertCatalogExercise inserts or updates one catalog entry.
func (st *Store) UpsertCatalogExercise(ctx context.Context, ex workout.CatalogExercise) error {
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO exercises (id, name, muscle_group, description) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, muscle_group = excluded.muscle_group,
		 description = excluded.description`,
		ex.ID, ex.Name, ex.MuscleGroup, ex.Description)
	if err != nil {
		return fmt.Errorf("upserting exercise %s: %w", ex.Name, err)
	}
	return nil
}

// ListCatalog returns every catalog exercise ordered by name.
func (st *Store) ListCatalog(ctx context.Context) ([]workout.CatalogExercise, error) {
	rows, err := st.db.QueryContext(ctx, `SELECT id, name, muscle_group, description FROM exercises ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	defer rows.Close()

	var out []workout.CatalogExercise
	for rows.Next() {
		var ex workout.CatalogExercise
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.MuscleGroup, &ex.Description); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// GetOrCreateUser maps a login to its owner id, creating the user on first sight.
func (st *Store) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	now := micros(st.now())
	var id int
	err := st.db.QueryRowContext(ctx, `
		INSERT INTO users (login, display_name, created_at, last_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = excluded.last_seen,
			    display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name)
		RETURNING id
	`, login, displayName, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("resolving user %s: %w", login, err)
	}
	return id, nil
}
