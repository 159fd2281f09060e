package workout

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so transports can map it without string matching.
type Kind string

const (
	KindConflict     Kind = "conflict"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindInvalidInput Kind = "invalid_input"
	KindStorage      Kind = "storage"
)

// Error is a typed domain failure. Sentinels below are compared by identity.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrActiveSessionExists = &Error{KindConflict, "an active session already exists"}

	ErrForbidden     = &Error{KindForbidden, "session belongs to another user"}
	ErrPlanForbidden = &Error{KindForbidden, "plan belongs to another user"}

	ErrSessionNotFound  = &Error{KindNotFound, "session not found"}
	ErrPlanNotFound     = &Error{KindNotFound, "plan not found"}
	ErrSetNotFound      = &Error{KindNotFound, "set not found"}
	ErrExerciseNotFound = &Error{KindNotFound, "exercise not found"}

	ErrSessionFinished        = &Error{KindInvalidState, "session is finished"}
	ErrSessionAlreadyFinished = &Error{KindInvalidState, "session already finished"}
	ErrSetNotInSession        = &Error{KindInvalidState, "set does not belong to this session"}
	ErrExerciseNotInSession   = &Error{KindInvalidState, "exercise does not belong to this session"}
	ErrExerciseNotInProgress  = &Error{KindInvalidState, "exercise is not in progress"}
	ErrExerciseFinished       = &Error{KindInvalidState, "exercise is already finished"}

	ErrInvalidInput = &Error{KindInvalidInput, "invalid input"}
)

// KindOf reports the kind of err. Errors outside the taxonomy are storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
