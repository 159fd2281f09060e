package workout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists Session aggregates. Every read returns a fully hydrated
// session with exercises ordered by OrderIndex and sets by SetNumber.
type Store interface {
	// Create inserts a new session with its exercises and sets. It returns
	// ErrActiveSessionExists when the owner already has an unfinished session;
	// the check is enforced by the store, not by the caller.
	Create(ctx context.Context, s *Session) error
	// Get returns ErrSessionNotFound when no session has the id.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	// Active returns the owner's unfinished session, or nil when there is none.
	Active(ctx context.Context, ownerID int) (*Session, error)
	// List returns all sessions of the owner, newest ClockIn first.
	List(ctx context.Context, ownerID int) ([]*Session, error)
	// Update loads the session under an exclusive lock, applies fn and saves
	// the result with its pending events in one transaction. Nothing is
	// written when fn returns an error.
	Update(ctx context.Context, id uuid.UUID, fn func(*Session) error) (*Session, error)
	// Delete removes the session, its exercises and sets.
	Delete(ctx context.Context, id uuid.UUID) error
	// SessionOfSet returns the session owning the set, or ErrSetNotFound.
	SessionOfSet(ctx context.Context, setID uuid.UUID) (uuid.UUID, error)
	// SessionOfExercise returns the session owning the exercise, or ErrExerciseNotFound.
	SessionOfExercise(ctx context.Context, exerciseID uuid.UUID) (uuid.UUID, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, truncated to the microsecond
// precision both SQL backends store.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }
