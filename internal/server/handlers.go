package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/claude/liftlog/internal/workout"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type startSessionRequest struct {
	PlanID uuid.UUID `json:"plan_id"`
}

type completeSetRequest struct {
	ActualReps   *int     `json:"actual_reps"`
	ActualWeight *float64 `json:"actual_weight"`
}

type addSetRequest struct {
	Weight *float64 `json:"weight"`
	Reps   *int     `json:"reps"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthy != nil {
		if err := s.healthy(r); err != nil {
			s.log.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.engine.ListCatalog(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if catalog == nil {
		catalog = []workout.CatalogExercise{}
	}
	writeJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PlanID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "plan_id is required", string(workout.KindInvalidInput))
		return
	}

	session, err := s.engine.StartSession(r.Context(), uid, req.PlanID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	sessions, err := s.engine.ListSessions(r.Context(), uid)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*workout.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleActiveSession answers null rather than 404 when nothing is in progress.
func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	session, err := s.engine.GetActive(r.Context(), uid)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	session, err := s.engine.GetSession(r.Context(), id, uid)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.engine.DeleteSession(r.Context(), id, uid); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteSet(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	setID, ok := pathUUID(w, r, "setID")
	if !ok {
		return
	}
	var req completeSetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ActualReps == nil {
		writeError(w, http.StatusBadRequest, "actual_reps is required", string(workout.KindInvalidInput))
		return
	}

	session, err := s.engine.CompleteSet(r.Context(), id, uid, setID, *req.ActualReps, req.ActualWeight)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	exerciseID, ok := pathUUID(w, r, "exerciseID")
	if !ok {
		return
	}
	var req addSetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Weight == nil || req.Reps == nil {
		writeError(w, http.StatusBadRequest, "weight and reps are required", string(workout.KindInvalidInput))
		return
	}

	session, err := s.engine.AddSet(r.Context(), id, exerciseID, uid, *req.Weight, *req.Reps)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSkipExercise(w http.ResponseWriter, r *http.Request) {
	s.exerciseCommand(w, r, s.engine.SkipExercise)
}

func (s *Server) handleResumeExercise(w http.ResponseWriter, r *http.Request) {
	s.exerciseCommand(w, r, s.engine.ResumeExercise)
}

func (s *Server) exerciseCommand(w http.ResponseWriter, r *http.Request,
	cmd func(ctx context.Context, sessionID, exerciseID uuid.UUID, callerID int) (*workout.Session, error)) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	exerciseID, ok := pathUUID(w, r, "exerciseID")
	if !ok {
		return
	}
	session, err := cmd(r.Context(), id, exerciseID, uid)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := mustUserID(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	session, err := s.engine.FinishSession(r.Context(), id, uid)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind workout.Kind) int {
	switch kind {
	case workout.KindConflict:
		return http.StatusConflict
	case workout.KindForbidden:
		return http.StatusForbidden
	case workout.KindNotFound:
		return http.StatusNotFound
	case workout.KindInvalidState, workout.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := workout.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	writeError(w, status, msg, string(kind))
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name, string(workout.KindInvalidInput))
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), string(workout.KindInvalidInput))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, map[string]string{"error": msg, "kind": kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
