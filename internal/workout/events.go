package workout

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventSessionStarted   EventType = "session.started"
	EventSessionFinished  EventType = "session.finished"
	EventExerciseStarted  EventType = "exercise.started"
	EventExerciseFinished EventType = "exercise.finished"
	EventExerciseSkipped  EventType = "exercise.skipped"
	EventSetCompleted     EventType = "set.completed"
	EventSetAdded         EventType = "set.added"
)

// Event is a lifecycle fact recorded on the aggregate by a transition.
type Event struct {
	Type            EventType  `json:"type"`
	SessionID       uuid.UUID  `json:"session_id"`
	OwnerID         int        `json:"owner_id"`
	ExerciseID      *uuid.UUID `json:"exercise_id,omitempty"`
	SetID           *uuid.UUID `json:"set_id,omitempty"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

func (s *Session) record(typ EventType, at time.Time, exerciseID, setID *uuid.UUID) {
	s.events = append(s.events, Event{
		Type:       typ,
		SessionID:  s.ID,
		OwnerID:    s.OwnerID,
		ExerciseID: clonePtr(exerciseID),
		SetID:      clonePtr(setID),
		OccurredAt: at,
	})
}
