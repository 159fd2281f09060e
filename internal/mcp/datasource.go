package mcp

import (
	"context"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// Backend abstracts the session commands behind the MCP tools. Both
// *workout.Engine (local) and HTTPClient (remote via REST API) satisfy it.
type Backend interface {
	StartSession(ctx context.Context, ownerID int, planID uuid.UUID) (*workout.Session, error)
	CompleteSet(ctx context.Context, sessionID uuid.UUID, callerID int, setID uuid.UUID, actualReps int, actualWeight *float64) (*workout.Session, error)
	AddSet(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int, weight float64, reps int) (*workout.Session, error)
	SkipExercise(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int) (*workout.Session, error)
	ResumeExercise(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int) (*workout.Session, error)
	FinishSession(ctx context.Context, sessionID uuid.UUID, callerID int) (*workout.Session, error)
	GetActive(ctx context.Context, callerID int) (*workout.Session, error)
	ListSessions(ctx context.Context, callerID int) ([]*workout.Session, error)
	GetSession(ctx context.Context, sessionID uuid.UUID, callerID int) (*workout.Session, error)
	DeleteSession(ctx context.Context, sessionID uuid.UUID, callerID int) error
	ListCatalog(ctx context.Context) ([]workout.CatalogExercise, error)
}

// Compile-time check: *workout.Engine satisfies Backend.
var _ Backend = (*workout.Engine)(nil)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the owner id injected by the transport layer.
func UserIDFromContext(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(userIDKey).(int)
	return id, ok
}

// WithUserID returns a context with the given owner id.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
