package storage

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
)

// UpsertCatalogExercise inserts or updates one catalog entry.
func (db *DB) UpsertCatalogExercise(ctx context.Context, ex workout.CatalogExercise) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO exercises (id, name, muscle_group, description) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, muscle_group = EXCLUDED.muscle_group,
		 description = EXCLUDED.description`,
		ex.ID, ex.Name, ex.MuscleGroup, ex.Description)
	if err != nil {
		return fmt.Errorf("upserting exercise %s: %w", ex.Name, err)
	}
	return nil
}

// ListCatalog returns every catalog exercise ordered by name.
func (db *DB) ListCatalog(ctx context.Context) ([]workout.CatalogExercise, error) {
	rows, err := db.Pool.Query(ctx, `SELECT id, name, muscle_group, description FROM exercises ORDER BY name`)
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
