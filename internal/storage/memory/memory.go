// Package memory is an in-process backend holding every aggregate in maps
// behind one mutex. It backs tests and the "memory" database driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

type outboxRow struct {
	events.Message
	claimedAt   *time.Time
	publishedAt *time.Time
}

// Store implements workout.Store, workout.PlanReader and events.Source.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*workout.Session
	plans    map[uuid.UUID]*workout.Plan
	catalog  map[uuid.UUID]workout.CatalogExercise
	users    map[string]int
	outbox   []*outboxRow
	nextID   int64
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		sessions: make(map[uuid.UUID]*workout.Session),
		plans:    make(map[uuid.UUID]*workout.Plan),
		catalog:  make(map[uuid.UUID]workout.CatalogExercise),
		users:    make(map[string]int),
		now:      time.Now,
	}
}

// Create stores a copy of s and its pending events. It rejects a second
// unfinished session for the same owner.
func (st *Store) Create(_ context.Context, s *workout.Session) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if !s.IsFinished && st.activeLocked(s.OwnerID) != nil {
		return workout.ErrActiveSessionExists
	}
	if err := st.appendOutboxLocked(s.DrainEvents()); err != nil {
		return err
	}
	st.sessions[s.ID] = s.Clone()
	return nil
}

// Get returns a copy of the session.
func (st *Store) Get(_ context.Context, id uuid.UUID) (*workout.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, workout.ErrSessionNotFound
	}
	return st.viewLocked(s), nil
}

// Active returns the owner's unfinished session, or nil.
func (st *Store) Active(_ context.Context, ownerID int) (*workout.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s := st.activeLocked(ownerID); s != nil {
		return st.viewLocked(s), nil
	}
	return nil, nil
}

func (st *Store) activeLocked(ownerID int) *workout.Session {
	for _, s := range st.sessions {
		if s.OwnerID == ownerID && !s.IsFinished {
			return s
		}
	}
	return nil
}

// List returns the owner's sessions, newest first.
func (st *Store) List(_ context.Context, ownerID int) ([]*workout.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	var out []*workout.Session
	for _, s := range st.sessions {
		if s.OwnerID == ownerID {
			out = append(out, st.viewLocked(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClockIn.After(out[j].ClockIn) })
	return out, nil
}

// Update applies fn to a copy and swaps it in only when fn succeeds.
func (st *Store) Update(_ context.Context, id uuid.UUID, fn func(*workout.Session) error) (*workout.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur, ok := st.sessions[id]
	if !ok {
		return nil, workout.ErrSessionNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := st.appendOutboxLocked(next.DrainEvents()); err != nil {
		return nil, err
	}
	st.sessions[id] = next
	return st.viewLocked(next), nil
}

// viewLocked returns a copy of s with catalog names filled in.
func (st *Store) viewLocked(s *workout.Session) *workout.Session {
	c := s.Clone()
	for i := range c.Exercises {
		if ex, ok := st.catalog[c.Exercises[i].ExerciseRefID]; ok {
			c.Exercises[i].Name = ex.Name
			c.Exercises[i].MuscleGroup = ex.MuscleGroup
		}
	}
	return c
}

// Delete removes the session.
func (st *Store) Delete(_ context.Context, id uuid.UUID) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return workout.ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// SessionOfSet returns the session holding the set.
func (st *Store) SessionOfSet(_ context.Context, setID uuid.UUID) (uuid.UUID, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.sessions {
		if _, set := s.Set(setID); set != nil {
			return id, nil
		}
	}
	return uuid.Nil, workout.ErrSetNotFound
}

// SessionOfExercise returns the session holding the exercise.
func (st *Store) SessionOfExercise(_ context.Context, exerciseID uuid.UUID) (uuid.UUID, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.sessions {
		if s.Exercise(exerciseID) != nil {
			return id, nil
		}
	}
	return uuid.Nil, workout.ErrExerciseNotFound
}
