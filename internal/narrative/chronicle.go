package narrative

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/sworm/internal/social"
)

// ChronicleData is the digest a chronicle is written from.
type ChronicleData struct {
	Tick         uint64
	Nation       string
	States       []StateSummary
	Population   int
	AvgHappiness float64
	AvgWealth    float64
	AvgTrust     float64
	Inflation    float64
	Unemployment float64
	Inequality   float64
	Budget       float64
	ActiveEvent  string
	News         []social.NewsEntry // Newest first
}

// StateSummary is a brief description of one state.
type StateSummary struct {
	Name       string
	Population int
	Leader     string
	Trust      float64
	Wealth     float64
}

// Chronicle is a generated issue of the nation's paper.
type Chronicle struct {
	GeneratedAt time.Time `json:"generated_at"`
	Tick        uint64    `json:"tick"`
	Source      string    `json:"source"` // "llm" or "template"
	Content     string    `json:"content"`
}

const chronicleSystem = `You are the editor of "The Sworm Gazette", the only newspaper of a small nation
ruled by a supreme leader and a handful of state governors. Write a short, wry front page from the
facts you are given: elections, dismissals, global events, what the citizens say. Keep it under 400
words. Do not invent numbers and do not mention that the nation is simulated.`

// GenerateChronicle writes a chronicle with the LLM when the client is enabled,
// falling back to a template on any failure.
func GenerateChronicle(ctx context.Context, client *Client, data *ChronicleData) *Chronicle {
	if client.Enabled() {
		content, err := client.Complete(ctx, chronicleSystem, buildChroniclePrompt(data), 800)
		if err == nil {
			return &Chronicle{GeneratedAt: time.Now(), Tick: data.Tick, Source: "llm", Content: content}
		}
		slog.Warn("chronicle fell back to template", "tick", data.Tick, "error", err)
	}
	return &Chronicle{
		GeneratedAt: time.Now(),
		Tick:        data.Tick,
		Source:      "template",
		Content:     fallbackChronicle(data),
	}
}

func buildChroniclePrompt(data *ChronicleData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the front page for the %s tick of %s.\n\n", humanize.Ordinal(int(data.Tick)), data.Nation)
	fmt.Fprintf(&b, "NATION: %s citizens, average wealth %.1f, happiness %.1f, trust %.1f.\n",
		humanize.Comma(int64(data.Population)), data.AvgWealth, data.AvgHappiness, data.AvgTrust)
	fmt.Fprintf(&b, "ECONOMY: inflation %.1f%%, unemployment %.1f%%, inequality %.2f, national budget %s.\n",
		data.Inflation*100, data.Unemployment*100, data.Inequality, humanize.Commaf(round(data.Budget)))
	if data.ActiveEvent != "" {
		fmt.Fprintf(&b, "GLOBAL EVENT: %s\n", data.ActiveEvent)
	}
	b.WriteString("\nSTATES:\n")
	for _, s := range data.States {
		fmt.Fprintf(&b, "- %s: %d citizens, governed by %s (trust %.1f, avg wealth %.1f)\n",
			s.Name, s.Population, s.Leader, s.Trust, s.Wealth)
	}
	if len(data.News) > 0 {
		b.WriteString("\nLATEST NEWS:\n")
		for _, n := range data.News {
			fmt.Fprintf(&b, "- [tick %d] %s (%s, %s): %s\n", n.Tick, n.Outcome, n.Actor, n.Locale, n.Reason)
		}
	}
	return b.String()
}

func fallbackChronicle(data *ChronicleData) string {
	var b strings.Builder

	b.WriteString("THE SWORM GAZETTE\n")
	b.WriteString("=================\n")
	fmt.Fprintf(&b, "%s, the %s tick\n\n", data.Nation, humanize.Ordinal(int(data.Tick)))

	b.WriteString("STATE OF THE NATION\n")
	fmt.Fprintf(&b, "%s citizens hold an average of %.1f each. Happiness stands at %.1f, trust in government at %.1f.\n",
		humanize.Comma(int64(data.Population)), data.AvgWealth, data.AvgHappiness, data.AvgTrust)
	fmt.Fprintf(&b, "Inflation %.1f%%, unemployment %.1f%%. The national purse holds %s.\n\n",
		data.Inflation*100, data.Unemployment*100, humanize.Commaf(round(data.Budget)))

	if data.ActiveEvent != "" {
		fmt.Fprintf(&b, "WORLD AFFAIRS\n%s grips the world.\n\n", data.ActiveEvent)
	}

	if len(data.States) > 0 {
		b.WriteString("THE STATES\n")
		for _, s := range data.States {
			fmt.Fprintf(&b, "- %s: %d citizens under %s (trust %.1f)\n", s.Name, s.Population, s.Leader, s.Trust)
		}
		b.WriteString("\n")
	}

	if len(data.News) > 0 {
		b.WriteString("HEADLINES\n")
		for i, n := range data.News {
			if i >= 5 {
				fmt.Fprintf(&b, "...and %d more.\n", len(data.News)-5)
				break
			}
			fmt.Fprintf(&b, "- %s in %s: %s\n", n.Outcome, n.Locale, n.Reason)
		}
	}
	return b.String()
}

func round(v float64) float64 {
	if v < 0 {
		return float64(int64(v - 0.5))
	}
	return float64(int64(v + 0.5))
}
