package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const sessionColumns = `id, owner_id, plan_id, clock_in, clock_out, is_finished, duration_minutes`

// Create inserts the session with its exercises, sets and pending events.
func (st *Store) Create(ctx context.Context, s *workout.Session) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?,?,?,?,?,?,?)`,
		s.ID, s.OwnerID, s.PlanID, micros(s.ClockIn), microsPtr(s.ClockOut), s.IsFinished, s.DurationMinutes)
	if err != nil {
		if isUniqueViolation(err) {
			return workout.ErrActiveSessionExists
		}
		return fmt.Errorf("inserting session: %w", err)
	}
	if err := saveChildren(ctx, tx, s); err != nil {
		return err
	}
	if err := st.insertOutbox(ctx, tx, s.DrainEvents()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// Get returns the hydrated session or workout.ErrSessionNotFound.
func (st *Store) Get(ctx context.Context, id uuid.UUID) (*workout.Session, error) {
	sessions, err := loadSessions(ctx, st.db, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, workout.ErrSessionNotFound
	}
	return sessions[0], nil
}

// Active returns the owner's unfinished session, or nil.
func (st *Store) Active(ctx context.Context, ownerID int) (*workout.Session, error) {
	sessions, err := loadSessions(ctx, st.db, `WHERE owner_id = ? AND is_finished = 0`, ownerID)
	if err != nil || len(sessions) == 0 {
		return nil, err
	}
	return sessions[0], nil
}

// List returns the owner's sessions, newest first.
func (st *Store) List(ctx context.Context, ownerID int) ([]*workout.Session, error) {
	return loadSessions(ctx, st.db, `WHERE owner_id = ? ORDER BY clock_in DESC`, ownerID)
}

// Update runs fn inside a write transaction and saves the aggregate with
// its pending events. Nothing is written when fn fails.
func (st *Store) Update(ctx context.Context, id uuid.UUID, fn func(*workout.Session) error) (*workout.Session, error) {
	// _txlock=immediate takes the write lock here, before the read.
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	sessions, err := loadSessions(ctx, tx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, workout.ErrSessionNotFound
	}
	s := sessions[0]

	if err := fn(s); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET plan_id = ?, clock_out = ?, is_finished = ?, duration_minutes = ? WHERE id = ?`,
		s.PlanID, microsPtr(s.ClockOut), s.IsFinished, s.DurationMinutes, s.ID)
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	if err := saveChildren(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := st.insertOutbox(ctx, tx, s.DrainEvents()); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return s, nil
}

// Delete removes the session; exercises and sets cascade.
func (st *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := st.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return workout.ErrSessionNotFound
	}
	return nil
}

// SessionOfSet returns the session holding the set.
func (st *Store) SessionOfSet(ctx context.Context, setID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := st.db.QueryRowContext(ctx,
		`SELECT e.session_id FROM session_sets s JOIN session_exercises e ON e.id = s.exercise_id WHERE s.id = ?`,
		setID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, workout.ErrSetNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up set: %w", err)
	}
	return id, nil
}

// SessionOfExercise returns the session holding the exercise.
func (st *Store) SessionOfExercise(ctx context.Context, exerciseID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := st.db.QueryRowContext(ctx, `SELECT session_id FROM session_exercises WHERE id = ?`, exerciseID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, workout.ErrExerciseNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up exercise: %w", err)
	}
	return id, nil
}

func loadSessions(ctx context.Context, q querier, clause string, args ...any) ([]*workout.Session, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*workout.Session
	byID := make(map[uuid.UUID]*workout.Session)
	for rows.Next() {
		var (
			s        workout.Session
			planID   uuid.NullUUID
			clockIn  int64
			clockOut sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &planID, &clockIn, &clockOut, &s.IsFinished, &s.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if planID.Valid {
			s.PlanID = &planID.UUID
		}
		s.ClockIn = fromMicros(clockIn)
		s.ClockOut = fromMicrosPtr(clockOut)
		s.Exercises = []workout.Exercise{}
		sessions = append(sessions, &s)
		byID[s.ID] = &s
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	if len(sessions) == 0 {
		return nil, nil
	}

	ids := make([]any, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}

	exRows, err := q.QueryContext(ctx,
		`SELECT e.id, e.session_id, e.exercise_ref_id, COALESCE(c.name, ''), COALESCE(c.muscle_group, ''),
		        e.order_index, e.status, e.notes
		 FROM session_exercises e
		 LEFT JOIN exercises c ON c.id = e.exercise_ref_id
		 WHERE e.session_id IN (`+placeholders(len(ids))+`)
		 ORDER BY e.session_id, e.order_index`, ids...)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer exRows.Close()

	for exRows.Next() {
		var ex workout.Exercise
		if err := exRows.Scan(&ex.ID, &ex.SessionID, &ex.ExerciseRefID, &ex.Name, &ex.MuscleGroup,
			&ex.OrderIndex, &ex.Status, &ex.Notes); err != nil {
			return nil, fmt.Errorf("scanning exercise: %w", err)
		}
		ex.Sets = []workout.Set{}
		s := byID[ex.SessionID]
		s.Exercises = append(s.Exercises, ex)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}
	exRows.Close()

	exIndex := make(map[uuid.UUID]*workout.Exercise)
	for _, s := range sessions {
		for i := range s.Exercises {
			exIndex[s.Exercises[i].ID] = &s.Exercises[i]
		}
	}

	setRows, err := q.QueryContext(ctx,
		`SELECT st.id, st.exercise_id, st.set_number, st.target_weight, st.target_reps,
		        st.actual_weight, st.actual_reps, st.is_completed, st.completed_at
		 FROM session_sets st
		 JOIN session_exercises e ON e.id = st.exercise_id
		 WHERE e.session_id IN (`+placeholders(len(ids))+`)
		 ORDER BY st.exercise_id, st.set_number`, ids...)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var (
			set         workout.Set
			completedAt sql.NullInt64
		)
		if err := setRows.Scan(&set.ID, &set.ExerciseID, &set.SetNumber, &set.TargetWeight, &set.TargetReps,
			&set.ActualWeight, &set.ActualReps, &set.IsCompleted, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		set.CompletedAt = fromMicrosPtr(completedAt)
		ex := exIndex[set.ExerciseID]
		ex.Sets = append(ex.Sets, set)
	}
	if err := setRows.Err(); err != nil {
		return nil, err
	}

	for _, s := range sessions {
		s.Sort()
	}
	return sessions, nil
}

func saveChildren(ctx context.Context, q querier, s *workout.Session) error {
	for _, ex := range s.Exercises {
		_, err := q.ExecContext(ctx,
			`INSERT INTO session_exercises (id, session_id, exercise_ref_id, order_index, status, notes)
			 VALUES (?,?,?,?,?,?)
			 ON CONFLICT (id) DO UPDATE SET status = excluded.status, notes = excluded.notes`,
			ex.ID, s.ID, ex.ExerciseRefID, ex.OrderIndex, string(ex.Status), ex.Notes)
		if err != nil {
			return fmt.Errorf("saving exercise: %w", err)
		}
		for _, set := range ex.Sets {
			_, err := q.ExecContext(ctx,
				`INSERT INTO session_sets (id, exercise_id, set_number, target_weight, target_reps,
				 actual_weight, actual_reps, is_completed, completed_at)
				 VALUES (?,?,?,?,?,?,?,?,?)
				 ON CONFLICT (id) DO UPDATE SET actual_weight = excluded.actual_weight,
				 actual_reps = excluded.actual_reps, is_completed = excluded.is_completed,
				 completed_at = excluded.completed_at`,
				set.ID, ex.ID, set.SetNumber, set.TargetWeight, set.TargetReps,
				set.ActualWeight, set.ActualReps, set.IsCompleted, microsPtr(set.CompletedAt))
			if err != nil {
				return fmt.Errorf("saving set: %w", err)
			}
		}
	}
	return nil
}

func (st *Store) insertOutbox(ctx context.Context, q querier, evs []workout.Event) error {
	msgs, err := events.Encode(evs)
	if err != nil {
		return err
	}
	for i, m := range msgs {
		_, err := q.ExecContext(ctx,
			`INSERT INTO outbox (session_id, event_type, payload, created_at) VALUES (?,?,?,?)`,
			m.SessionID, m.EventType, string(m.Payload), micros(evs[i].OccurredAt))
		if err != nil {
			return fmt.Errorf("inserting outbox event: %w", err)
		}
	}
	return nil
}
