package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/liftlog/internal/storage/memory"
	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

func newTestHandlers(t *testing.T) (*handlers, *workout.Plan) {
	t.Helper()
	st := memory.New()
	plan := &workout.Plan{ID: uuid.New(), OwnerID: 1, Name: "pull"}
	plan.Exercises = []workout.PlanExercise{
		{ExerciseRefID: uuid.New(), Sets: []workout.PlanSet{{TargetWeight: 60, TargetReps: 10}}},
		{ExerciseRefID: uuid.New(), Sets: []workout.PlanSet{{TargetWeight: 20, TargetReps: 12}}},
	}
	if err := st.UpsertPlan(context.Background(), plan); err != nil {
		t.Fatal(err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &handlers{backend: workout.NewEngine(st, st, workout.SystemClock{}, log), log: log}, plan
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func resultSession(t *testing.T, res *mcp.CallToolResult) *workout.Session {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var s workout.Session
	if err := json.Unmarshal([]byte(resultText(t, res)), &s); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return &s
}

// TestUserIDFromContextUnset verifies no owner is reported when none was injected.
func TestUserIDFromContextUnset(t *testing.T) {
	if id, ok := UserIDFromContext(context.Background()); ok {
		t.Errorf("UserIDFromContext(empty) = %d, want none", id)
	}
}

// TestUserIDFromContextSet verifies the owner id is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id, ok := UserIDFromContext(ctx); !ok || id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestToolsRequireCaller verifies tools refuse to run without an owner in context.
func TestToolsRequireCaller(t *testing.T) {
	h, plan := newTestHandlers(t)
	res, err := h.startSession(context.Background(), callRequest(map[string]any{"plan_id": plan.ID.String()}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("expected tool error without caller")
	}
}

// TestSessionTools drives a session through the MCP tool handlers.
func TestSessionTools(t *testing.T) {
	h, plan := newTestHandlers(t)
	ctx := WithUserID(context.Background(), 1)

	res, err := h.startSession(ctx, callRequest(map[string]any{"plan_id": plan.ID.String()}))
	if err != nil {
		t.Fatal(err)
	}
	s := resultSession(t, res)
	sid := s.ID.String()

	res, _ = h.startSession(ctx, callRequest(map[string]any{"plan_id": plan.ID.String()}))
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "conflict:") {
		t.Errorf("second start = %q, want conflict error", resultText(t, res))
	}

	res, _ = h.addSet(ctx, callRequest(map[string]any{
		"session_id": sid, "exercise_id": s.Exercises[1].ID.String(), "weight": 25.0, "reps": 8.0,
	}))
	s = resultSession(t, res)
	if len(s.Exercises[1].Sets) != 2 || s.Exercises[1].Sets[1].SetNumber != 2 {
		t.Fatalf("sets after add_set = %+v", s.Exercises[1].Sets)
	}

	res, _ = h.completeSet(ctx, callRequest(map[string]any{
		"session_id": sid, "set_id": s.Exercises[0].Sets[0].ID.String(), "actual_reps": 9.0, "actual_weight": 62.5,
	}))
	s = resultSession(t, res)
	if got := *s.Exercises[0].Sets[0].ActualWeight; got != 62.5 {
		t.Errorf("actual weight = %v, want 62.5", got)
	}
	if s.Exercises[1].Status != workout.StatusInProgress {
		t.Errorf("second exercise status = %s, want IN_PROGRESS", s.Exercises[1].Status)
	}

	res, _ = h.skipExercise(ctx, callRequest(map[string]any{"session_id": sid, "exercise_id": s.Exercises[1].ID.String()}))
	s = resultSession(t, res)
	if s.Current() != nil {
		t.Errorf("current after skipping the last exercise = %v, want none", s.Current().ID)
	}

	res, _ = h.resumeExercise(ctx, callRequest(map[string]any{"session_id": sid, "exercise_id": s.Exercises[1].ID.String()}))
	s = resultSession(t, res)
	if s.Exercises[1].Status != workout.StatusInProgress {
		t.Errorf("resumed status = %s", s.Exercises[1].Status)
	}

	res, _ = h.getActiveSession(ctx, callRequest(nil))
	if got := resultSession(t, res); got.ID != s.ID {
		t.Errorf("active = %s, want %s", got.ID, s.ID)
	}

	res, _ = h.finishSession(ctx, callRequest(map[string]any{"session_id": sid}))
	s = resultSession(t, res)
	if !s.IsFinished {
		t.Error("session not finished")
	}

	res, _ = h.getActiveSession(ctx, callRequest(nil))
	if text := resultText(t, res); text != "null" {
		t.Errorf("active after finish = %q, want null", text)
	}

	res, _ = h.listSessions(ctx, callRequest(nil))
	var list []workout.Session
	if err := json.Unmarshal([]byte(resultText(t, res)), &list); err != nil || len(list) != 1 {
		t.Errorf("list_sessions = %q", resultText(t, res))
	}

	res, _ = h.deleteSession(ctx, callRequest(map[string]any{"session_id": sid}))
	if res.IsError {
		t.Fatalf("delete_session: %s", resultText(t, res))
	}
	res, _ = h.getSession(ctx, callRequest(map[string]any{"session_id": sid}))
	if !res.IsError || !strings.HasPrefix(resultText(t, res), "not_found:") {
		t.Errorf("get after delete = %q, want not_found", resultText(t, res))
	}
}

// TestToolArgumentErrors verifies malformed arguments become tool errors.
func TestToolArgumentErrors(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := WithUserID(context.Background(), 1)

	cases := map[string]func() (*mcp.CallToolResult, error){
		"missing plan": func() (*mcp.CallToolResult, error) {
			return h.startSession(ctx, callRequest(map[string]any{}))
		},
		"bad uuid": func() (*mcp.CallToolResult, error) {
			return h.getSession(ctx, callRequest(map[string]any{"session_id": "nope"}))
		},
		"missing reps": func() (*mcp.CallToolResult, error) {
			return h.completeSet(ctx, callRequest(map[string]any{"session_id": uuid.NewString(), "set_id": uuid.NewString()}))
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := call()
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsError {
				t.Errorf("expected tool error, got %q", resultText(t, res))
			}
		})
	}
}

// TestActiveSessionResource verifies the resource reports null with no session.
func TestActiveSessionResource(t *testing.T) {
	h, _ := newTestHandlers(t)
	var req mcp.ReadResourceRequest
	req.Params.URI = "liftlog://active_session"

	contents, err := h.activeSession(WithUserID(context.Background(), 1), req)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok || text.Text != "null" {
		t.Errorf("contents = %+v, want null", contents[0])
	}

	if _, err := h.activeSession(context.Background(), req); err == nil {
		t.Error("expected error without caller")
	}
}

// TestNewRegistersTools verifies the server builds with the engine backend.
func TestNewRegistersTools(t *testing.T) {
	h, _ := newTestHandlers(t)
	if s := New(h.backend, "test", h.log); s == nil {
		t.Fatal("New returned nil")
	}
	if NewHTTPHandler(New(h.backend, "test", h.log)) == nil {
		t.Fatal("NewHTTPHandler returned nil")
	}
}

// TestCatalogToolAndResource verifies list_exercises and liftlog://catalog
// return the catalog ordered by name.
func TestCatalogToolAndResource(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	for _, name := range []string{"Pull-up", "Face Pull"} {
		if err := st.UpsertCatalogExercise(ctx, workout.CatalogExercise{ID: uuid.New(), Name: name, MuscleGroup: "back"}); err != nil {
			t.Fatal(err)
		}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &handlers{backend: workout.NewEngine(st, st, workout.SystemClock{}, log), log: log}

	res, err := h.listExercises(ctx, callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	var catalog []workout.CatalogExercise
	if err := json.Unmarshal([]byte(resultText(t, res)), &catalog); err != nil {
		t.Fatal(err)
	}
	if len(catalog) != 2 || catalog[0].Name != "Face Pull" {
		t.Fatalf("catalog = %+v, want Face Pull first", catalog)
	}

	var req mcp.ReadResourceRequest
	req.Params.URI = "liftlog://catalog"
	contents, err := h.catalog(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok || !strings.Contains(text.Text, `"name":"Pull-up"`) {
		t.Errorf("contents = %+v, want catalog JSON", contents[0])
	}
}
