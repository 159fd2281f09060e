// Package workout tracks in-progress workout sessions: the data model, the
// progression rules that move a session from its first exercise to the last,
// and the storage contracts the rules run against.
package workout

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// ExerciseStatus is the progress state of one exercise within a session.
type ExerciseStatus string

const (
	StatusNotStarted ExerciseStatus = "not_started"
	StatusInProgress ExerciseStatus = "in_progress"
	StatusFinished   ExerciseStatus = "finished"
)

// Valid reports whether s is a known status.
func (s ExerciseStatus) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// Session is one workout instance and the aggregate root for its exercises and sets.
type Session struct {
	ID              uuid.UUID  `json:"id"`
	OwnerID         int        `json:"owner_id"`
	PlanID          *uuid.UUID `json:"plan_id"`
	ClockIn         time.Time  `json:"clock_in"`
	ClockOut        *time.Time `json:"clock_out"`
	IsFinished      bool       `json:"is_finished"`
	DurationMinutes *int       `json:"duration_minutes"`
	Exercises       []Exercise `json:"exercises"`

	events []Event
}

// Exercise is a snapshot of one catalog exercise plus its progress in a session.
// Name and MuscleGroup are read from the catalog and never stored with the session.
type Exercise struct {
	ID            uuid.UUID      `json:"id"`
	SessionID     uuid.UUID      `json:"session_id"`
	ExerciseRefID uuid.UUID      `json:"exercise_ref_id"`
	Name          string         `json:"name,omitempty"`
	MuscleGroup   string         `json:"muscle_group,omitempty"`
	OrderIndex    int            `json:"order_index"`
	Status        ExerciseStatus `json:"status"`
	Notes         string         `json:"notes,omitempty"`
	Sets          []Set          `json:"sets"`
}

// Set is one planned unit of work. Target values never change after creation.
type Set struct {
	ID           uuid.UUID  `json:"id"`
	ExerciseID   uuid.UUID  `json:"exercise_id"`
	SetNumber    int        `json:"set_number"`
	TargetWeight float64    `json:"target_weight"`
	TargetReps   int        `json:"target_reps"`
	ActualWeight *float64   `json:"actual_weight"`
	ActualReps   *int       `json:"actual_reps"`
	IsCompleted  bool       `json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Current returns the exercise in progress, or nil. The pointer aliases s.
func (s *Session) Current() *Exercise {
	for i := range s.Exercises {
		if s.Exercises[i].Status == StatusInProgress {
			return &s.Exercises[i]
		}
	}
	return nil
}

// Exercise returns the exercise with the given id, or nil.
func (s *Session) Exercise(id uuid.UUID) *Exercise {
	for i := range s.Exercises {
		if s.Exercises[i].ID == id {
			return &s.Exercises[i]
		}
	}
	return nil
}

// Set returns the set with the given id and the exercise that owns it.
func (s *Session) Set(id uuid.UUID) (*Exercise, *Set) {
	for i := range s.Exercises {
		ex := &s.Exercises[i]
		for j := range ex.Sets {
			if ex.Sets[j].ID == id {
				return ex, &ex.Sets[j]
			}
		}
	}
	return nil, nil
}

// AllSetsCompleted reports whether every set of the exercise is completed.
// An exercise with no sets is trivially complete.
func (e *Exercise) AllSetsCompleted() bool {
	for _, set := range e.Sets {
		if !set.IsCompleted {
			return false
		}
	}
	return true
}

// Sort orders exercises by OrderIndex and each exercise's sets by SetNumber.
// Stores call it after hydrating an aggregate.
func (s *Session) Sort() {
	sort.SliceStable(s.Exercises, func(i, j int) bool {
		return s.Exercises[i].OrderIndex < s.Exercises[j].OrderIndex
	})
	for i := range s.Exercises {
		sets := s.Exercises[i].Sets
		sort.SliceStable(sets, func(a, b int) bool { return sets[a].SetNumber < sets[b].SetNumber })
	}
}

// Clone returns a deep copy without pending events.
func (s *Session) Clone() *Session {
	c := *s
	c.events = nil
	c.PlanID = clonePtr(s.PlanID)
	c.ClockOut = clonePtr(s.ClockOut)
	c.DurationMinutes = clonePtr(s.DurationMinutes)
	c.Exercises = make([]Exercise, len(s.Exercises))
	for i, ex := range s.Exercises {
		ex.Sets = make([]Set, len(s.Exercises[i].Sets))
		for j, set := range s.Exercises[i].Sets {
			set.ActualWeight = clonePtr(set.ActualWeight)
			set.ActualReps = clonePtr(set.ActualReps)
			set.CompletedAt = clonePtr(set.CompletedAt)
			ex.Sets[j] = set
		}
		c.Exercises[i] = ex
	}
	return &c
}

// DrainEvents returns the events recorded since the last drain and clears them.
// Stores persist the returned events in the same transaction as the aggregate.
func (s *Session) DrainEvents() []Event {
	evs := s.events
	s.events = nil
	return evs
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
