package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/workout"
	"github.com/google/uuid"
)

// HTTPClient implements Backend by calling the liftlog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// sessions live on the remote server (accessed over Tailscale). The
// server derives the caller from the transport, so callerID arguments
// are ignored.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies Backend.
var _ Backend = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. A
// non-empty token is sent as a bearer credential.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is the error body written by the REST API.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Kind != "" {
			return &workout.Error{Kind: workout.Kind(apiErr.Kind), Msg: apiErr.Error}
		}
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) session(ctx context.Context, method, path string, in any) (*workout.Session, error) {
	var s *workout.Session
	if err := c.do(ctx, method, path, in, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func sessionPath(id uuid.UUID) string {
	return "/api/v1/sessions/" + id.String()
}

func (c *HTTPClient) StartSession(ctx context.Context, _ int, planID uuid.UUID) (*workout.Session, error) {
	return c.session(ctx, http.MethodPost, "/api/v1/sessions", map[string]any{"plan_id": planID})
}

func (c *HTTPClient) CompleteSet(ctx context.Context, sessionID uuid.UUID, _ int, setID uuid.UUID, actualReps int, actualWeight *float64) (*workout.Session, error) {
	body := map[string]any{"actual_reps": actualReps}
	if actualWeight != nil {
		body["actual_weight"] = *actualWeight
	}
	return c.session(ctx, http.MethodPost, sessionPath(sessionID)+"/sets/"+setID.String()+"/complete", body)
}

func (c *HTTPClient) AddSet(ctx context.Context, sessionID, exerciseID uuid.UUID, _ int, weight float64, reps int) (*workout.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID)+"/exercises/"+exerciseID.String()+"/sets",
		map[string]any{"weight": weight, "reps": reps})
}

func (c *HTTPClient) SkipExercise(ctx context.Context, sessionID, exerciseID uuid.UUID, _ int) (*workout.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID)+"/exercises/"+exerciseID.String()+"/skip", nil)
}

func (c *HTTPClient) ResumeExercise(ctx context.Context, sessionID, exerciseID uuid.UUID, _ int) (*workout.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID)+"/exercises/"+exerciseID.String()+"/resume", nil)
}

func (c *HTTPClient) FinishSession(ctx context.Context, sessionID uuid.UUID, _ int) (*workout.Session, error) {
	return c.session(ctx, http.MethodPost, sessionPath(sessionID)+"/finish", nil)
}

func (c *HTTPClient) GetActive(ctx context.Context, _ int) (*workout.Session, error) {
	return c.session(ctx, http.MethodGet, "/api/v1/sessions/active", nil)
}

func (c *HTTPClient) ListSessions(ctx context.Context, _ int) ([]*workout.Session, error) {
	var sessions []*workout.Session
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *HTTPClient) GetSession(ctx context.Context, sessionID uuid.UUID, _ int) (*workout.Session, error) {
	return c.session(ctx, http.MethodGet, sessionPath(sessionID), nil)
}

func (c *HTTPClient) DeleteSession(ctx context.Context, sessionID uuid.UUID, _ int) error {
	return c.do(ctx, http.MethodDelete, sessionPath(sessionID), nil, nil)
}

func (c *HTTPClient) ListCatalog(ctx context.Context) ([]workout.CatalogExercise, error) {
	var catalog []workout.CatalogExercise
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises", nil, &catalog); err != nil {
		return nil, err
	}
	return catalog, nil
}
