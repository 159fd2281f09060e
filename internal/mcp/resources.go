package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/claude/liftlog/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
)

var errNoCaller = errors.New("unidentified caller")

func (h *handlers) activeSession(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, errNoCaller
	}

	session, err := h.backend.GetActive(ctx, uid)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, session)
}

func (h *handlers) sessionHistory(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uid, ok := UserIDFromContext(ctx)
	if !ok {
		return nil, errNoCaller
	}

	sessions, err := h.backend.ListSessions(ctx, uid)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, sessions)
}

func (h *handlers) catalog(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	catalog, err := h.backend.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if catalog == nil {
		catalog = []workout.CatalogExercise{}
	}
	return jsonResource(req.Params.URI, catalog)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
