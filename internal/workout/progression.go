package workout

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// outcome reports which cascading transitions a command triggered.
type outcome struct {
	advanced     bool
	autoFinished bool
}

// newSession materializes a plan snapshot into a fresh session and promotes
// the first exercise.
func newSession(plan *Plan, ownerID int, now time.Time) *Session {
	planID := plan.ID
	s := &Session{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		PlanID:    &planID,
		ClockIn:   now,
		Exercises: make([]Exercise, 0, len(plan.Exercises)),
	}
	for i, pe := range plan.Exercises {
		ex := Exercise{
			ID:            uuid.New(),
			SessionID:     s.ID,
			ExerciseRefID: pe.ExerciseRefID,
			Name:          pe.Name,
			MuscleGroup:   pe.MuscleGroup,
			OrderIndex:    i,
			Status:        StatusNotStarted,
			Notes:         pe.Notes,
			Sets:          make([]Set, 0, len(pe.Sets)),
		}
		for j, ps := range pe.Sets {
			ex.Sets = append(ex.Sets, Set{
				ID:           uuid.New(),
				ExerciseID:   ex.ID,
				SetNumber:    j + 1,
				TargetWeight: ps.TargetWeight,
				TargetReps:   ps.TargetReps,
			})
		}
		s.Exercises = append(s.Exercises, ex)
	}
	s.record(EventSessionStarted, now, nil, nil)
	if first := s.nextNotStarted(uuid.Nil); first != nil {
		s.start(first, now)
	}
	return s
}

// nextNotStarted returns the not-started exercise with the lowest OrderIndex,
// ignoring exclude.
func (s *Session) nextNotStarted(exclude uuid.UUID) *Exercise {
	var next *Exercise
	for i := range s.Exercises {
		ex := &s.Exercises[i]
		if ex.Status != StatusNotStarted || ex.ID == exclude {
			continue
		}
		if next == nil || ex.OrderIndex < next.OrderIndex {
			next = ex
		}
	}
	return next
}

func (s *Session) start(ex *Exercise, now time.Time) {
	ex.Status = StatusInProgress
	s.record(EventExerciseStarted, now, &ex.ID, nil)
}

func (s *Session) completeSet(setID uuid.UUID, actualReps int, actualWeight *float64, now time.Time) (outcome, error) {
	var out outcome
	if s.IsFinished {
		return out, ErrSessionFinished
	}
	if actualReps < 0 {
		return out, invalidInput("actual reps must not be negative")
	}
	if actualWeight != nil && *actualWeight < 0 {
		return out, invalidInput("actual weight must not be negative")
	}
	ex, set := s.Set(setID)
	if set == nil {
		return out, ErrSetNotFound
	}

	weight := set.TargetWeight
	if actualWeight != nil {
		weight = *actualWeight
	}
	reps := actualReps
	completedAt := now
	set.ActualReps = &reps
	set.ActualWeight = &weight
	set.IsCompleted = true
	set.CompletedAt = &completedAt
	s.record(EventSetCompleted, now, &ex.ID, &set.ID)

	// Only the exercise in progress can trigger auto-advance.
	if ex.Status != StatusInProgress || !ex.AllSetsCompleted() {
		return out, nil
	}
	ex.Status = StatusFinished
	s.record(EventExerciseFinished, now, &ex.ID, nil)

	if next := s.nextNotStarted(uuid.Nil); next != nil {
		s.start(next, now)
		out.advanced = true
		return out, nil
	}
	if err := s.finish(now); err != nil {
		return out, err
	}
	out.autoFinished = true
	return out, nil
}

func (s *Session) addSet(exerciseID uuid.UUID, weight float64, reps int, now time.Time) (*Set, error) {
	if s.IsFinished {
		return nil, ErrSessionFinished
	}
	if weight < 0 {
		return nil, invalidInput("weight must not be negative")
	}
	if reps < 1 {
		return nil, invalidInput("reps must be at least 1")
	}
	ex := s.Exercise(exerciseID)
	if ex == nil {
		return nil, ErrExerciseNotFound
	}
	ex.Sets = append(ex.Sets, Set{
		ID:           uuid.New(),
		ExerciseID:   ex.ID,
		SetNumber:    len(ex.Sets) + 1,
		TargetWeight: weight,
		TargetReps:   reps,
	})
	set := &ex.Sets[len(ex.Sets)-1]
	s.record(EventSetAdded, now, &ex.ID, &set.ID)
	return set, nil
}

func (s *Session) skip(exerciseID uuid.UUID, now time.Time) (outcome, error) {
	var out outcome
	if s.IsFinished {
		return out, ErrSessionFinished
	}
	ex := s.Exercise(exerciseID)
	if ex == nil {
		return out, ErrExerciseNotFound
	}
	if ex.Status != StatusInProgress {
		return out, ErrExerciseNotInProgress
	}
	ex.Status = StatusNotStarted
	s.record(EventExerciseSkipped, now, &ex.ID, nil)

	// With nothing left to advance to the session stays open without a
	// current exercise; finishing is left to the caller.
	if next := s.nextNotStarted(ex.ID); next != nil {
		s.start(next, now)
		out.advanced = true
	}
	return out, nil
}

func (s *Session) resume(exerciseID uuid.UUID, now time.Time) error {
	if s.IsFinished {
		return ErrSessionFinished
	}
	ex := s.Exercise(exerciseID)
	if ex == nil {
		return ErrExerciseNotFound
	}
	switch ex.Status {
	case StatusFinished:
		return ErrExerciseFinished
	case StatusInProgress:
		return nil
	}
	if cur := s.Current(); cur != nil {
		cur.Status = StatusNotStarted
		s.record(EventExerciseSkipped, now, &cur.ID, nil)
	}
	s.start(ex, now)
	return nil
}

func (s *Session) finish(now time.Time) error {
	if s.IsFinished {
		return ErrSessionAlreadyFinished
	}
	clockOut := now
	duration := durationMinutes(s.ClockIn, clockOut)
	s.ClockOut = &clockOut
	s.DurationMinutes = &duration
	for i := range s.Exercises {
		ex := &s.Exercises[i]
		if ex.Status != StatusFinished {
			ex.Status = StatusFinished
			s.record(EventExerciseFinished, now, &ex.ID, nil)
		}
	}
	s.IsFinished = true
	s.record(EventSessionFinished, now, nil, nil)
	s.events[len(s.events)-1].DurationMinutes = clonePtr(&duration)
	return nil
}

// durationMinutes rounds the elapsed wall time to whole minutes. A clock that
// moved backwards yields zero.
func durationMinutes(clockIn, clockOut time.Time) int {
	d := clockOut.Sub(clockIn)
	if d < 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}
