// Package remote is an HTTP client for the simulation control surface.
// GETs observe the world; POSTs act on it with the admin bearer token.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/governance"
	"github.com/talgya/sworm/internal/narrative"
	"github.com/talgya/sworm/internal/policy"
	"github.com/talgya/sworm/internal/social"
)

// Status mirrors GET /api/v1/status.
type Status struct {
	Name         string  `json:"name"`
	Tick         uint64  `json:"tick"`
	Running      bool    `json:"running"`
	Seed         int64   `json:"seed"`
	Agents       int     `json:"agents"`
	Population   int     `json:"population"`
	AvgTrust     float64 `json:"avg_trust"`
	AvgHappiness float64 `json:"avg_happiness"`
	SLBudget     float64 `json:"sl_budget"`
	Persistence  bool    `json:"persistence"`
	LLM          bool    `json:"llm"`
}

// RunState mirrors the start/stop responses.
type RunState struct {
	Running bool   `json:"running"`
	Tick    uint64 `json:"tick"`
}

// ElectionReport mirrors POST /api/v1/simulation/election.
type ElectionReport struct {
	Tick    uint64                      `json:"tick"`
	Results []governance.ElectionResult `json:"results"`
}

// Client talks to a running sworm API.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewClient creates a client targeting the given API base URL.
func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status fetches GET /api/v1/status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// State fetches the full world snapshot.
func (c *Client) State(ctx context.Context) (*engine.TickResult, error) {
	var r engine.TickResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/simulation/state", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// History fetches up to limit recorded ticks, oldest first.
func (c *Client) History(ctx context.Context, limit int) ([]engine.HistoryRecord, error) {
	var recs []engine.HistoryRecord
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/simulation/history?limit=%d", limit), &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// News returns the store's most recent news entries, newest first.
func (c *Client) News(ctx context.Context, limit int) ([]social.NewsEntry, error) {
	var news []social.NewsEntry
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/news?limit=%d", limit), &news); err != nil {
		return nil, err
	}
	return news, nil
}

// Brain fetches the learner snapshots keyed by agent id.
func (c *Client) Brain(ctx context.Context) (map[agents.AgentID]policy.LearnerSnapshot, error) {
	var snaps map[agents.AgentID]policy.LearnerSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/simulation/brain", &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Chronicle fetches the current front page.
func (c *Client) Chronicle(ctx context.Context) (*narrative.Chronicle, error) {
	var ch narrative.Chronicle
	if err := c.do(ctx, http.MethodGet, "/api/v1/chronicle", &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// Start sets the simulation's run flag.
func (c *Client) Start(ctx context.Context) (*RunState, error) {
	var s RunState
	if err := c.do(ctx, http.MethodPost, "/api/v1/simulation/start", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Stop clears the simulation's run flag.
func (c *Client) Stop(ctx context.Context) (*RunState, error) {
	var s RunState
	if err := c.do(ctx, http.MethodPost, "/api/v1/simulation/stop", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Tick advances the simulation by one tick.
func (c *Client) Tick(ctx context.Context) (*engine.TickResult, error) {
	var r engine.TickResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/simulation/tick", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Election forces an election in every state.
func (c *Client) Election(ctx context.Context) (*ElectionReport, error) {
	var r ElectionReport
	if err := c.do(ctx, http.MethodPost, "/api/v1/simulation/election", &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	for {
		_, err := c.Status(ctx)
		if err == nil {
			return nil
		}
		slog.Debug("sworm API not ready", "error", err, "backoff", backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for API: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// do sends a request and decodes the JSON response into target.
func (c *Client) do(ctx context.Context, method, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if method == http.MethodPost && c.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// StatusError is returned for non-200 responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}
