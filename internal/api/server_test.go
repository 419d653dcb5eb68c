package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/persistence"
	"github.com/talgya/sworm/internal/policy"
	"github.com/talgya/sworm/internal/social"
)

func newTestServer(t *testing.T, adminKey string, history HistoryReader) (*Server, *httptest.Server) {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.CitizensPerState = 10
	s := &Server{
		Sim:      engine.NewSimulation(cfg, nil),
		History:  history,
		AdminKey: adminKey,
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, method, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStatusAndState(t *testing.T) {
	_, ts := newTestServer(t, "", nil)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var status map[string]any
	decode(t, resp, &status)
	if status["population"].(float64) != 30 || status["running"].(bool) {
		t.Errorf("status = %v", status)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/v1/simulation/state", "")
	var state engine.TickResult
	decode(t, resp, &state)
	if state.Tick != 0 || len(state.Agents) != 38 || len(state.Nation.States) != 3 {
		t.Errorf("state tick=%d agents=%d states=%d", state.Tick, len(state.Agents), len(state.Nation.States))
	}
}

func TestControlFlow(t *testing.T) {
	s, ts := newTestServer(t, "", nil)

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/simulation/start", "")
	if resp.StatusCode != http.StatusOK || !s.Sim.Running() {
		t.Fatalf("start: code %d running %v", resp.StatusCode, s.Sim.Running())
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/v1/simulation/tick", "")
	var res engine.TickResult
	decode(t, resp, &res)
	if res.Tick != 1 {
		t.Errorf("tick = %d, want 1", res.Tick)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/v1/simulation/election", "")
	var election struct {
		Tick    uint64 `json:"tick"`
		Results []struct {
			StateID      string `json:"state_id"`
			IncumbentWon bool   `json:"incumbent_won"`
		} `json:"results"`
	}
	decode(t, resp, &election)
	if election.Tick != 1 || len(election.Results) != 3 {
		t.Errorf("election = %+v", election)
	}

	do(t, http.MethodPost, ts.URL+"/api/v1/simulation/stop", "")
	if s.Sim.Running() {
		t.Error("still running after stop")
	}
}

func TestWrongMethodRejected(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	resp := do(t, http.MethodGet, ts.URL+"/api/v1/simulation/tick", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET tick = %d, want 405", resp.StatusCode)
	}
}

func TestAdminAuth(t *testing.T) {
	s, ts := newTestServer(t, "secret", nil)

	if code := do(t, http.MethodPost, ts.URL+"/api/v1/simulation/tick", "").StatusCode; code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", code)
	}
	if code := do(t, http.MethodPost, ts.URL+"/api/v1/simulation/tick", "wrong").StatusCode; code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", code)
	}
	if s.Sim.Tick() != 0 {
		t.Fatalf("unauthorized request advanced the simulation")
	}
	if code := do(t, http.MethodPost, ts.URL+"/api/v1/simulation/tick", "secret").StatusCode; code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", code)
	}
	if code := do(t, http.MethodGet, ts.URL+"/api/v1/simulation/state", "").StatusCode; code != http.StatusOK {
		t.Errorf("public GET = %d, want 200", code)
	}
}

func TestBrain(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	var snaps map[string]policy.LearnerSnapshot
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/simulation/brain", ""), &snaps)

	kinds := map[string]int{}
	for _, snap := range snaps {
		kinds[snap.Kind]++
	}
	if kinds["value_learner"] != 1 || kinds["hybrid"] != 3 {
		t.Errorf("learner kinds = %v, want 1 value_learner and 3 hybrid", kinds)
	}
}

type fakeHistory struct {
	recs  []engine.HistoryRecord
	news  []social.NewsEntry
	err   error
	limit int
}

func (f *fakeHistory) History(_ context.Context, limit int) ([]engine.HistoryRecord, error) {
	f.limit = limit
	return f.recs, f.err
}

func (f *fakeHistory) RecentNews(_ context.Context, limit int) ([]social.NewsEntry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.news) {
		return f.news[:limit], nil
	}
	return f.news, nil
}

func TestHistory(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	if code := do(t, http.MethodGet, ts.URL+"/api/v1/simulation/history", "").StatusCode; code != http.StatusServiceUnavailable {
		t.Errorf("no store = %d, want 503", code)
	}

	h := &fakeHistory{recs: []engine.HistoryRecord{{Tick: 1}, {Tick: 2}}}
	_, ts = newTestServer(t, "", h)
	var recs []engine.HistoryRecord
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/simulation/history?limit=2", ""), &recs)
	if len(recs) != 2 || h.limit != 2 {
		t.Errorf("records = %d, limit passed = %d", len(recs), h.limit)
	}

	if code := do(t, http.MethodGet, ts.URL+"/api/v1/simulation/history?limit=0", "").StatusCode; code != http.StatusBadRequest {
		t.Errorf("limit=0 = %d, want 400", code)
	}

	h.recs, h.err = nil, persistence.ErrNoHistory
	resp := do(t, http.MethodGet, ts.URL+"/api/v1/simulation/history", "")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(body)) != "[]" || h.limit != defaultHistoryLimit {
		t.Errorf("empty history body = %q, limit %d", body, h.limit)
	}

	h.err = errors.New("disk on fire")
	if code := do(t, http.MethodGet, ts.URL+"/api/v1/simulation/history", "").StatusCode; code != http.StatusInternalServerError {
		t.Errorf("store failure = %d, want 500", code)
	}
}

func TestNews(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	if code := do(t, http.MethodGet, ts.URL+"/api/v1/news", "").StatusCode; code != http.StatusServiceUnavailable {
		t.Errorf("no store = %d, want 503", code)
	}

	h := &fakeHistory{news: []social.NewsEntry{
		{Tick: 3, Outcome: "Leader Dismissed", Actor: "Appointed Leader", Locale: "s2", Reason: "Low Trust"},
		{Tick: 2, Outcome: "Social Feedback", Actor: "Citizens", Locale: "s1"},
	}}
	_, ts = newTestServer(t, "", h)
	var news []social.NewsEntry
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/news?limit=1", ""), &news)
	if len(news) != 1 || news[0] != h.news[0] || h.limit != 1 {
		t.Errorf("news = %+v, limit passed = %d", news, h.limit)
	}

	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/news", ""), &news)
	if len(news) != 2 || h.limit != defaultNewsLimit {
		t.Errorf("news = %d entries, limit passed = %d", len(news), h.limit)
	}

	h.news = nil
	resp := do(t, http.MethodGet, ts.URL+"/api/v1/news", "")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty news body = %q", body)
	}

	if code := do(t, http.MethodGet, ts.URL+"/api/v1/news?limit=x", "").StatusCode; code != http.StatusBadRequest {
		t.Errorf("limit=x = %d, want 400", code)
	}
	h.err = errors.New("disk on fire")
	if code := do(t, http.MethodGet, ts.URL+"/api/v1/news", "").StatusCode; code != http.StatusInternalServerError {
		t.Errorf("store failure = %d, want 500", code)
	}
}

func TestChronicleFallbackAndCache(t *testing.T) {
	s, ts := newTestServer(t, "", nil)

	var first, second map[string]any
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/chronicle", ""), &first)
	if first["source"] != "template" {
		t.Errorf("source = %v, want template", first["source"])
	}
	if !strings.Contains(first["content"].(string), "Sworm Nation") {
		t.Errorf("chronicle does not name the nation: %q", first["content"])
	}
	decode(t, do(t, http.MethodGet, ts.URL+"/api/v1/chronicle", ""), &second)
	if first["generated_at"] != second["generated_at"] {
		t.Error("chronicle regenerated within the same tick")
	}
	if s.cachedChronicle == nil || s.cachedChronicle.Tick != 0 {
		t.Errorf("cached chronicle = %+v", s.cachedChronicle)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(0, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients are unaffected")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Errorf("RetryAfter = %d, want 61", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Error("window reset should allow again")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r, false); got != "10.0.0.1" {
		t.Errorf("clientIP = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 198.51.100.7")
	if got := clientIP(r, false); got != "10.0.0.1" {
		t.Errorf("clientIP without a trusted proxy = %q, want the remote address", got)
	}
	if got := clientIP(r, true); got != "198.51.100.7" {
		t.Errorf("clientIP behind a trusted proxy = %q, want the proxy-appended hop", got)
	}
}

func TestChronicleLimitIgnoresForwardedFor(t *testing.T) {
	_, ts := newTestServer(t, "", nil)
	var last int
	for i := 0; i < 11; i++ {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/chronicle", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("11th chronicle request with a rotating X-Forwarded-For = %d, want 429", last)
	}
}
