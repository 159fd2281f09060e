package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/events"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const activeSessionIndex = "sessions_one_active_per_owner"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const sessionColumns = `id, owner_id, plan_id, clock_in, clock_out, is_finished, duration_minutes`

// Create inserts a session aggregate and its start events in one transaction.
func (db *DB) Create(ctx context.Context, s *workout.Session) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.OwnerID, s.PlanID, s.ClockIn, s.ClockOut, s.IsFinished, s.DurationMinutes)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeSessionIndex {
			return workout.ErrActiveSessionExists
		}
		return fmt.Errorf("inserting session: %w", err)
	}

	if err := saveChildren(ctx, tx, s); err != nil {
		return err
	}
	if err := insertOutbox(ctx, tx, s.DrainEvents()); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// Get returns a hydrated session.
func (db *DB) Get(ctx context.Context, id uuid.UUID) (*workout.Session, error) {
	sessions, err := loadSessions(ctx, db.Pool, `WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, workout.ErrSessionNotFound
	}
	return sessions[0], nil
}

// Active returns the owner's unfinished session or nil.
func (db *DB) Active(ctx context.Context, ownerID int) (*workout.Session, error) {
	sessions, err := loadSessions(ctx, db.Pool, `WHERE owner_id = $1 AND NOT is_finished`, ownerID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0], nil
}

// List returns every session of the owner, newest first.
func (db *DB) List(ctx context.Context, ownerID int) ([]*workout.Session, error) {
	return loadSessions(ctx, db.Pool, `WHERE owner_id = $1 ORDER BY clock_in DESC`, ownerID)
}

// Update locks the session row, applies fn and writes the aggregate back.
func (db *DB) Update(ctx context.Context, id uuid.UUID, fn func(*workout.Session) error) (*workout.Session, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sessions, err := loadSessions(ctx, tx, `WHERE id = $1 FOR UPDATE`, id)
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

	_, err = tx.Exec(ctx,
		`UPDATE sessions SET plan_id = $2, clock_out = $3, is_finished = $4, duration_minutes = $5 WHERE id = $1`,
		s.ID, s.PlanID, s.ClockOut, s.IsFinished, s.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	if err := saveChildren(ctx, tx, s); err != nil {
		return nil, err
	}
	if err := insertOutbox(ctx, tx, s.DrainEvents()); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing session: %w", err)
	}
	return s, nil
}

// Delete removes a session; exercises and sets follow by cascade.
func (db *DB) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return workout.ErrSessionNotFound
	}
	return nil
}

// SessionOfSet returns the id of the session owning the set.
func (db *DB) SessionOfSet(ctx context.Context, setID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.Pool.QueryRow(ctx,
		`SELECT e.session_id FROM session_sets s JOIN session_exercises e ON e.id = s.exercise_id WHERE s.id = $1`,
		setID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, workout.ErrSetNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up set: %w", err)
	}
	return id, nil
}

// SessionOfExercise returns the id of the session owning the exercise.
func (db *DB) SessionOfExercise(ctx context.Context, exerciseID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := db.Pool.QueryRow(ctx, `SELECT session_id FROM session_exercises WHERE id = $1`, exerciseID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, workout.ErrExerciseNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up exercise: %w", err)
	}
	return id, nil
}

// loadSessions selects sessions with the given clause and hydrates their
// exercises, with catalog names, and sets with two batched queries.
func loadSessions(ctx context.Context, q querier, clause string, args ...any) ([]*workout.Session, error) {
	rows, err := q.Query(ctx, `SELECT `+sessionColumns+` FROM sessions `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*workout.Session
	byID := make(map[uuid.UUID]*workout.Session)
	for rows.Next() {
		var (
			s      workout.Session
			planID uuid.NullUUID
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &planID, &s.ClockIn, &s.ClockOut, &s.IsFinished, &s.DurationMinutes); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if planID.Valid {
			s.PlanID = &planID.UUID
		}
		s.ClockIn = s.ClockIn.UTC()
		if s.ClockOut != nil {
			out := s.ClockOut.UTC()
			s.ClockOut = &out
		}
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

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID.String())
	}

	exRows, err := q.Query(ctx,
		`SELECT e.id, e.session_id, e.exercise_ref_id, COALESCE(c.name, ''), COALESCE(c.muscle_group, ''),
		        e.order_index, e.status, e.notes
		 FROM session_exercises e
		 LEFT JOIN exercises c ON c.id = e.exercise_ref_id
		 WHERE e.session_id = ANY($1::uuid[])
		 ORDER BY e.session_id, e.order_index`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying exercises: %w", err)
	}
	defer exRows.Close()

	exIndex := make(map[uuid.UUID]*workout.Exercise)
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
	for _, s := range sessions {
		for i := range s.Exercises {
			exIndex[s.Exercises[i].ID] = &s.Exercises[i]
		}
	}

	setRows, err := q.Query(ctx,
		`SELECT st.id, st.exercise_id, st.set_number, st.target_weight, st.target_reps,
		        st.actual_weight, st.actual_reps, st.is_completed, st.completed_at
		 FROM session_sets st
		 JOIN session_exercises e ON e.id = st.exercise_id
		 WHERE e.session_id = ANY($1::uuid[])
		 ORDER BY st.exercise_id, st.set_number`, ids)
	if err != nil {
		return nil, fmt.Errorf("querying sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var set workout.Set
		if err := setRows.Scan(&set.ID, &set.ExerciseID, &set.SetNumber, &set.TargetWeight, &set.TargetReps,
			&set.ActualWeight, &set.ActualReps, &set.IsCompleted, &set.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning set: %w", err)
		}
		if set.CompletedAt != nil {
			at := set.CompletedAt.UTC()
			set.CompletedAt = &at
		}
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

// saveChildren upserts every exercise and set of the aggregate. Target values,
// numbering and ordering are immutable, so conflicts only touch progress columns.
func saveChildren(ctx context.Context, q querier, s *workout.Session) error {
	if len(s.Exercises) == 0 {
		return nil
	}

	args := make([]any, 0, len(s.Exercises)*6)
	for _, ex := range s.Exercises {
		args = append(args, ex.ID, s.ID, ex.ExerciseRefID, ex.OrderIndex, string(ex.Status), ex.Notes)
	}
	_, err := q.Exec(ctx,
		`INSERT INTO session_exercises (id, session_id, exercise_ref_id, order_index, status, notes) VALUES `+
			valuesClause(len(s.Exercises), 6)+
			` ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, notes = EXCLUDED.notes`,
		args...)
	if err != nil {
		return fmt.Errorf("saving exercises: %w", err)
	}

	var n int
	args = args[:0]
	for _, ex := range s.Exercises {
		for _, set := range ex.Sets {
			args = append(args, set.ID, ex.ID, set.SetNumber, set.TargetWeight, set.TargetReps,
				set.ActualWeight, set.ActualReps, set.IsCompleted, set.CompletedAt)
			n++
		}
	}
	if n == 0 {
		return nil
	}
	_, err = q.Exec(ctx,
		`INSERT INTO session_sets (id, exercise_id, set_number, target_weight, target_reps,
		 actual_weight, actual_reps, is_completed, completed_at) VALUES `+
			valuesClause(n, 9)+
			` ON CONFLICT (id) DO UPDATE SET actual_weight = EXCLUDED.actual_weight,
			  actual_reps = EXCLUDED.actual_reps, is_completed = EXCLUDED.is_completed,
			  completed_at = EXCLUDED.completed_at`,
		args...)
	if err != nil {
		return fmt.Errorf("saving sets: %w", err)
	}
	return nil
}

func insertOutbox(ctx context.Context, q querier, evs []workout.Event) error {
	if len(evs) == 0 {
		return nil
	}
	msgs, err := events.Encode(evs)
	if err != nil {
		return err
	}
	args := make([]any, 0, len(msgs)*4)
	for i, m := range msgs {
		args = append(args, m.SessionID, m.EventType, string(m.Payload), evs[i].OccurredAt)
	}
	_, err = q.Exec(ctx,
		`INSERT INTO outbox (session_id, event_type, payload, created_at) VALUES `+valuesClause(len(msgs), 4),
		args...)
	if err != nil {
		return fmt.Errorf("inserting outbox events: %w", err)
	}
	return nil
}

// valuesClause renders "($1,$2),($3,$4)" for rows tuples of width placeholders.
func valuesClause(rows, width int) string {
	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteByte(',')
			}
			fmt.Fprintf(&b, "$%d", i*width+j+1)
		}
		b.WriteByte(')')
	}
	return b.String()
}
