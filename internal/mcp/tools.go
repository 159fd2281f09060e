package mcp

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolStartSession = mcp.NewTool("start_session",
	mcp.WithDescription("Start a workout session from a plan. Copies the plan's exercises and target sets into the session and puts the first exercise in progress. Fails if a session is already active."),
	mcp.WithString("plan_id", mcp.Required(), mcp.Description("Plan UUID")),
)

var toolCompleteSet = mcp.NewTool("complete_set",
	mcp.WithDescription("Record the reps (and optionally the weight) achieved for a set. Completing the last set of the current exercise advances to the next exercise; completing the last set of the session finishes it."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
	mcp.WithString("set_id", mcp.Required(), mcp.Description("Set UUID")),
	mcp.WithNumber("actual_reps", mcp.Required(), mcp.Description("Reps performed (0 or more)")),
	mcp.WithNumber("actual_weight", mcp.Description("Weight used. Defaults to the set's target weight.")),
)

var toolAddSet = mcp.NewTool("add_set",
	mcp.WithDescription("Append an extra set to an exercise of the session. The set is numbered after the existing ones."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Session exercise UUID")),
	mcp.WithNumber("weight", mcp.Required(), mcp.Description("Target weight (0 or more)")),
	mcp.WithNumber("reps", mcp.Required(), mcp.Description("Target reps (at least 1)")),
)

var toolSkipExercise = mcp.NewTool("skip_exercise",
	mcp.WithDescription("Put the exercise in progress back to not started and move on to the next not-started exercise, if any."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Session exercise UUID, must be the one in progress")),
)

var toolResumeExercise = mcp.NewTool("resume_exercise",
	mcp.WithDescription("Make a not-started exercise the one in progress, setting the current one back to not started."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Session exercise UUID")),
)

var toolFinishSession = mcp.NewTool("finish_session",
	mcp.WithDescription("Finish the session now. Remaining exercises are marked finished and the duration is recorded in minutes."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolGetActiveSession = mcp.NewTool("get_active_session",
	mcp.WithDescription("Return the session currently in progress, or null when there is none."),
)

var toolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List all of the caller's sessions, newest first."),
)

var toolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Return one session with its exercises and sets."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolDeleteSession = mcp.NewTool("delete_session",
	mcp.WithDescription("Delete a session and everything recorded in it."),
	mcp.WithString("session_id", mcp.Required(), mcp.Description("Session UUID")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the exercise catalog plans and sessions refer to, with name and muscle group."),
)

// --- Tool handlers ---

func requireUUID(req mcp.CallToolRequest, name string) (uuid.UUID, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError(name + " parameter is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, mcp.NewToolResultError("invalid " + name + ": " + err.Error())
	}
	return id, nil
}

func (h *handlers) caller(ctx context.Context) (int, *mcp.CallToolResult) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return 0, mcp.NewToolResultError(errNoCaller.Error())
	}
	return uid, nil
}

func (h *handlers) result(tool string, v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		kind := workout.KindOf(err)
		if kind == workout.KindStorage {
			h.log.Error("mcp "+tool, "error", err)
		}
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err)), nil
	}
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) startSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	planID, bad := requireUUID(req, "plan_id")
	if bad != nil {
		return bad, nil
	}

	session, err := h.backend.StartSession(ctx, uid, planID)
	return h.result("start_session", session, err)
}

func (h *handlers) completeSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	sessionID, bad := requireUUID(req, "session_id")
	if bad != nil {
		return bad, nil
	}
	setID, bad := requireUUID(req, "set_id")
	if bad != nil {
		return bad, nil
	}
	reps, err := req.RequireInt("actual_reps")
	if err != nil {
		return mcp.NewToolResultError("actual_reps parameter is required"), nil
	}
	var weight *float64
	if _, ok := req.GetArguments()["actual_weight"]; ok {
		w, err := req.RequireFloat("actual_weight")
		if err != nil {
			return mcp.NewToolResultError("actual_weight must be a number"), nil
		}
		weight = &w
	}

	session, err := h.backend.CompleteSet(ctx, sessionID, uid, setID, reps, weight)
	return h.result("complete_set", session, err)
}

func (h *handlers) addSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	sessionID, bad := requireUUID(req, "session_id")
	if bad != nil {
		return bad, nil
	}
	exerciseID, bad := requireUUID(req, "exercise_id")
	if bad != nil {
		return bad, nil
	}
	weight, err := req.RequireFloat("weight")
	if err != nil {
		return mcp.NewToolResultError("weight parameter is required"), nil
	}
	reps, err := req.RequireInt("reps")
	if err != nil {
		return mcp.NewToolResultError("reps parameter is required"), nil
	}

	session, err := h.backend.AddSet(ctx, sessionID, exerciseID, uid, weight, reps)
	return h.result("add_set", session, err)
}

func (h *handlers) skipExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.exerciseCommand(ctx, req, "skip_exercise", h.backend.SkipExercise)
}

func (h *handlers) resumeExercise(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.exerciseCommand(ctx, req, "resume_exercise", h.backend.ResumeExercise)
}

func (h *handlers) exerciseCommand(ctx context.Context, req mcp.CallToolRequest, tool string,
	cmd func(context.Context, uuid.UUID, uuid.UUID, int) (*workout.Session, error)) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	sessionID, bad := requireUUID(req, "session_id")
	if bad != nil {
		return bad, nil
	}
	exerciseID, bad := requireUUID(req, "exercise_id")
	if bad != nil {
		return bad, nil
	}

	session, err := cmd(ctx, sessionID, exerciseID, uid)
	return h.result(tool, session, err)
}

func (h *handlers) finishSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	sessionID, bad := requireUUID(req, "session_id")
	if bad != nil {
		return bad, nil
	}

	session, err := h.backend.FinishSession(ctx, sessionID, uid)
	return h.result("finish_session", session, err)
}

func (h *handlers) getActiveSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}

	session, err := h.backend.GetActive(ctx, uid)
	return h.result("get_active_session", session, err)
}

func (h *handlers) listSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}

	sessions, err := h.backend.ListSessions(ctx, uid)
	if sessions == nil {
		sessions = []*workout.Session{}
	}
	return h.result("list_sessions", sessions, err)
}

func (h *handlers) getSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	sessionID, bad := requireUUID(req, "session_id")
	if bad != nil {
		return bad, nil
	}

	session, err := h.backend.GetSession(ctx, sessionID, uid)
	return h.result("get_session", session, err)
}

func (h *handlers) deleteSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid, bad := h.caller(ctx)
	if bad != nil {
		return bad, nil
	}
	sessionID, bad := requireUUID(req, "session_id")
	if bad != nil {
		return bad, nil
	}

	err := h.backend.DeleteSession(ctx, sessionID, uid)
	return h.result("delete_session", map[string]any{"deleted": sessionID}, err)
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, err := h.backend.ListCatalog(ctx)
	if catalog == nil {
		catalog = []workout.CatalogExercise{}
	}
	return h.result("list_exercises", catalog, err)
}
