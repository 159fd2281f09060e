package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/claude/liftlog/internal/observability"
	"github.com/google/uuid"
)

// Engine applies session commands on behalf of a verified caller. Every
// mutating command runs as one Store.Update so the whole cascade of a command
// is persisted atomically or not at all.
type Engine struct {
	store Store
	plans PlanReader
	clock Clock
	log   *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(store Store, plans PlanReader, clock Clock, log *slog.Logger) *Engine {
	return &Engine{store: store, plans: plans, clock: clock, log: log}
}

// StartSession materializes the plan into a new session for ownerID and
// promotes its first exercise.
func (e *Engine) StartSession(ctx context.Context, ownerID int, planID uuid.UUID) (_ *Session, err error) {
	defer observe("start_session", &err)

	active, err := e.store.Active(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("checking active session: %w", err)
	}
	if active != nil {
		return nil, ErrActiveSessionExists
	}

	plan, err := e.plans.GetPlan(ctx, planID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading plan %s: %w", planID, err)
	}

	s := newSession(plan, ownerID, e.clock.Now())
	// A concurrent start that passed the Active check above is rejected here
	// by the store's uniqueness constraint.
	if err := e.store.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	e.log.Info("session started", "session_id", s.ID, "owner_id", ownerID, "plan_id", planID, "exercises", len(s.Exercises))
	return s, nil
}

// CompleteSet records the actual result of a set. actualWeight defaults to
// the set's target weight when nil. Completing the last open set of the
// exercise in progress finishes it and advances to the next exercise, or
// finishes the session when none is left.
func (e *Engine) CompleteSet(ctx context.Context, sessionID uuid.UUID, callerID int, setID uuid.UUID, actualReps int, actualWeight *float64) (_ *Session, err error) {
	defer observe("complete_set", &err)

	var out outcome
	s, err := e.mutate(ctx, sessionID, callerID, func(s *Session) error {
		var err error
		out, err = s.completeSet(setID, actualReps, actualWeight, e.clock.Now())
		return err
	})
	if errors.Is(err, ErrSetNotFound) {
		return nil, e.locateSet(ctx, setID)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case out.advanced:
		observability.RecordAdvance()
		e.log.Info("exercise advanced", "session_id", s.ID, "exercise_id", s.Current().ID)
	case out.autoFinished:
		observability.RecordSessionFinished(*s.DurationMinutes, true)
		e.log.Info("session auto-finished", "session_id", s.ID, "duration_minutes", *s.DurationMinutes)
	}
	return s, nil
}

// AddSet appends an extra set to an exercise. The exercise status is left unchanged.
func (e *Engine) AddSet(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int, weight float64, reps int) (_ *Session, err error) {
	defer observe("add_set", &err)

	s, err := e.mutate(ctx, sessionID, callerID, func(s *Session) error {
		_, err := s.addSet(exerciseID, weight, reps, e.clock.Now())
		return err
	})
	if errors.Is(err, ErrExerciseNotFound) {
		return nil, e.locateExercise(ctx, exerciseID)
	}
	return s, err
}

// SkipExercise demotes the exercise in progress and promotes the next
// not-started one, if any. The session is never finished by a skip.
func (e *Engine) SkipExercise(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int) (_ *Session, err error) {
	defer observe("skip_exercise", &err)

	var out outcome
	s, err := e.mutate(ctx, sessionID, callerID, func(s *Session) error {
		var err error
		out, err = s.skip(exerciseID, e.clock.Now())
		return err
	})
	if errors.Is(err, ErrExerciseNotFound) {
		return nil, e.locateExercise(ctx, exerciseID)
	}
	if err != nil {
		return nil, err
	}
	if out.advanced {
		observability.RecordAdvance()
	}
	return s, nil
}

// ResumeExercise makes the exercise the one in progress, demoting the current
// one. Resuming the exercise already in progress changes nothing.
func (e *Engine) ResumeExercise(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int) (_ *Session, err error) {
	defer observe("resume_exercise", &err)

	s, err := e.mutate(ctx, sessionID, callerID, func(s *Session) error {
		return s.resume(exerciseID, e.clock.Now())
	})
	if errors.Is(err, ErrExerciseNotFound) {
		return nil, e.locateExercise(ctx, exerciseID)
	}
	return s, err
}

// FinishSession closes the session, computes its duration and forces every
// exercise to finished. Finishing twice fails with ErrSessionAlreadyFinished.
func (e *Engine) FinishSession(ctx context.Context, sessionID uuid.UUID, callerID int) (_ *Session, err error) {
	defer observe("finish_session", &err)

	s, err := e.mutate(ctx, sessionID, callerID, func(s *Session) error {
		return s.finish(e.clock.Now())
	})
	if err != nil {
		return nil, err
	}
	observability.RecordSessionFinished(*s.DurationMinutes, false)
	e.log.Info("session finished", "session_id", s.ID, "duration_minutes", *s.DurationMinutes)
	return s, nil
}

// ListCatalog returns the exercises plans and sessions refer to.
func (e *Engine) ListCatalog(ctx context.Context) (_ []CatalogExercise, err error) {
	defer observe("list_catalog", &err)

	catalog, err := e.plans.ListCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	return catalog, nil
}

// GetActive returns the caller's unfinished session, or nil when there is none.
func (e *Engine) GetActive(ctx context.Context, callerID int) (_ *Session, err error) {
	defer observe("get_active", &err)

	s, err := e.store.Active(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("loading active session: %w", err)
	}
	return s, nil
}

// ListSessions returns the caller's sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context, callerID int) (_ []*Session, err error) {
	defer observe("list_sessions", &err)

	sessions, err := e.store.List(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return sessions, nil
}

// GetSession returns one session owned by the caller.
func (e *Engine) GetSession(ctx context.Context, sessionID uuid.UUID, callerID int) (_ *Session, err error) {
	defer observe("get_session", &err)
	return e.owned(ctx, sessionID, callerID)
}

// DeleteSession removes a session owned by the caller with all its exercises and sets.
func (e *Engine) DeleteSession(ctx context.Context, sessionID uuid.UUID, callerID int) (err error) {
	defer observe("delete_session", &err)

	if _, err := e.owned(ctx, sessionID, callerID); err != nil {
		return err
	}
	if err := e.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	e.log.Info("session deleted", "session_id", sessionID, "owner_id", callerID)
	return nil
}

func (e *Engine) owned(ctx context.Context, sessionID uuid.UUID, callerID int) (*Session, error) {
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.OwnerID != callerID {
		return nil, ErrForbidden
	}
	return s, nil
}

// mutate runs fn under the store's lock after the ownership check.
func (e *Engine) mutate(ctx context.Context, sessionID uuid.UUID, callerID int, fn func(*Session) error) (*Session, error) {
	return e.store.Update(ctx, sessionID, func(s *Session) error {
		if s.OwnerID != callerID {
			return ErrForbidden
		}
		return fn(s)
	})
}

// locateSet tells a set that does not exist apart from one that belongs to
// another session.
func (e *Engine) locateSet(ctx context.Context, setID uuid.UUID) error {
	if _, err := e.store.SessionOfSet(ctx, setID); err != nil {
		return err
	}
	return ErrSetNotInSession
}

func (e *Engine) locateExercise(ctx context.Context, exerciseID uuid.UUID) error {
	if _, err := e.store.SessionOfExercise(ctx, exerciseID); err != nil {
		return err
	}
	return ErrExerciseNotInSession
}

func observe(command string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(KindOf(*err))
	}
	observability.RecordCommand(command, outcome)
}
