// Package seed loads exercise catalog entries and workout plans from a YAML
// fixture into a store.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixture is the on-disk format.
//
//	owner: alice@example.com
//	catalog:
//	  - {id: ..., name: Bench Press, muscle_group: chest}
//	plans:
//	  - name: Push
//	    exercises:
//	      - exercise_id: ...
//	        sets: [{weight: 60, reps: 8}]
type Fixture struct {
	Owner   string         `yaml:"owner"`
	Catalog []CatalogEntry `yaml:"catalog"`
	Plans   []PlanEntry    `yaml:"plans"`
}

type CatalogEntry struct {
	ID          uuid.UUID `yaml:"id"`
	Name        string    `yaml:"name"`
	MuscleGroup string    `yaml:"muscle_group"`
	Description string    `yaml:"description"`
}

type PlanEntry struct {
	ID          uuid.UUID       `yaml:"id"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Exercises   []ExerciseEntry `yaml:"exercises"`
}

type ExerciseEntry struct {
	ExerciseID uuid.UUID  `yaml:"exercise_id"`
	Notes      string     `yaml:"notes"`
	Sets       []SetEntry `yaml:"sets"`
}

type SetEntry struct {
	Weight float64 `yaml:"weight"`
	Reps   int     `yaml:"reps"`
}

// Target is what a fixture is written into. All storage backends satisfy it.
type Target interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	UpsertCatalogExercise(ctx context.Context, ex workout.CatalogExercise) error
	UpsertPlan(ctx context.Context, p *workout.Plan) error
}

// Summary reports what Apply wrote.
type Summary struct {
	OwnerID   int
	Exercises int
	Plans     int
}

// Parse decodes and validates a fixture. Entries without an id get one
// derived from their name so reseeding the same file updates in place.
func Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return &f, nil
}

// LoadFile parses the fixture at path.
func LoadFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening fixture: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

func (f *Fixture) normalize() error {
	if f.Owner == "" {
		return fmt.Errorf("fixture owner is required")
	}
	for i := range f.Catalog {
		ex := &f.Catalog[i]
		if ex.Name == "" {
			return fmt.Errorf("catalog entry %d: name is required", i)
		}
		if ex.ID == uuid.Nil {
			ex.ID = derivedID("exercise", ex.Name)
		}
	}
	for i := range f.Plans {
		p := &f.Plans[i]
		if p.Name == "" {
			return fmt.Errorf("plan %d: name is required", i)
		}
		if p.ID == uuid.Nil {
			p.ID = derivedID("plan", f.Owner, p.Name)
		}
		for j, ex := range p.Exercises {
			if ex.ExerciseID == uuid.Nil {
				return fmt.Errorf("plan %q exercise %d: exercise_id is required", p.Name, j)
			}
			for k, s := range ex.Sets {
				if s.Weight < 0 || s.Reps < 1 {
					return fmt.Errorf("plan %q exercise %d set %d: weight must be >= 0 and reps >= 1", p.Name, j, k+1)
				}
			}
		}
	}
	return nil
}

func derivedID(parts ...string) uuid.UUID {
	name := "liftlog"
	for _, p := range parts {
		name += ":" + p
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name))
}

// Apply writes the catalog first, then every plan owned by the fixture owner.
// Plan exercises keep their listed order; sets are numbered from 1.
func Apply(ctx context.Context, t Target, f *Fixture, log *slog.Logger) (Summary, error) {
	var sum Summary
	owner, err := t.GetOrCreateUser(ctx, f.Owner, "")
	if err != nil {
		return sum, fmt.Errorf("resolving owner %s: %w", f.Owner, err)
	}
	sum.OwnerID = owner

	for _, ex := range f.Catalog {
		err := t.UpsertCatalogExercise(ctx, workout.CatalogExercise{
			ID:          ex.ID,
			Name:        ex.Name,
			MuscleGroup: ex.MuscleGroup,
			Description: ex.Description,
		})
		if err != nil {
			return sum, err
		}
		sum.Exercises++
	}

	for _, pe := range f.Plans {
		plan := &workout.Plan{ID: pe.ID, OwnerID: owner, Name: pe.Name, Description: pe.Description}
		for _, ex := range pe.Exercises {
			item := workout.PlanExercise{ExerciseRefID: ex.ExerciseID, Notes: ex.Notes}
			for _, s := range ex.Sets {
				item.Sets = append(item.Sets, workout.PlanSet{TargetWeight: s.Weight, TargetReps: s.Reps})
			}
			plan.Exercises = append(plan.Exercises, item)
		}
		if err := t.UpsertPlan(ctx, plan); err != nil {
			return sum, fmt.Errorf("writing plan %q: %w", pe.Name, err)
		}
		log.Info("plan seeded", "plan_id", plan.ID, "name", plan.Name, "exercises", len(plan.Exercises))
		sum.Plans++
	}
	return sum, nil
}
