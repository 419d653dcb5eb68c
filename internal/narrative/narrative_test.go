package narrative

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/talgya/sworm/internal/social"
)

func TestFeedbackUsesTemplateSet(t *testing.T) {
	f := NewFeedback(rand.New(rand.NewSource(1)))
	fill := strings.NewReplacer("{leader_name}", "Leader ab12", "{state_name}", "State 1")

	tests := []struct {
		propaganda bool
		templates  []string
	}{
		{true, propagandaTemplates},
		{false, complaintTemplates},
	}
	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			got := f.Generate("Leader ab12", "State 1", tt.propaganda)
			found := false
			for _, tmpl := range tt.templates {
				if fill.Replace(tmpl) == got {
					found = true
				}
			}
			if !found {
				t.Fatalf("propaganda=%v: %q is not from the expected template set", tt.propaganda, got)
			}
			if strings.Contains(got, "{") {
				t.Fatalf("unfilled placeholder in %q", got)
			}
		}
	}
}

func sampleData() *ChronicleData {
	return &ChronicleData{
		Tick:         120,
		Nation:       "Sworm Nation",
		Population:   150,
		AvgHappiness: 48.2,
		AvgWealth:    1234.5,
		AvgTrust:     37,
		Inflation:    0.03,
		Unemployment: 0.06,
		Budget:       1000,
		States:       []StateSummary{{Name: "State 1", Population: 50, Leader: "Leader ab12", Trust: 40}},
		News: []social.NewsEntry{
			{Tick: 100, Outcome: "Incumbent Defeated", Actor: "New Leader", Locale: "State 1", Reason: "32 to 18"},
		},
	}
}

func TestChronicleFallsBackWithoutClient(t *testing.T) {
	c := GenerateChronicle(context.Background(), NewClient(""), sampleData())
	if c.Source != "template" {
		t.Fatalf("source = %q, want template", c.Source)
	}
	for _, want := range []string{"THE SWORM GAZETTE", "120th tick", "Incumbent Defeated in State 1", "1,000"} {
		if !strings.Contains(c.Content, want) {
			t.Errorf("chronicle missing %q:\n%s", want, c.Content)
		}
	}
}

func TestChronicleUsesLLM(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "k" {
			http.Error(w, "no key", http.StatusUnauthorized)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "EXTRA! Governor ousted."}},
		})
	}))
	defer srv.Close()

	c := GenerateChronicle(context.Background(), NewClient("k").WithURL(srv.URL), sampleData())
	if c.Source != "llm" || c.Content != "EXTRA! Governor ousted." {
		t.Fatalf("chronicle = %+v", c)
	}
}

func TestChronicleFallsBackOnAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := GenerateChronicle(context.Background(), NewClient("k").WithURL(srv.URL), sampleData())
	if c.Source != "template" {
		t.Fatalf("source = %q, want template", c.Source)
	}
}
