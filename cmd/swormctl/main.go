// Command swormctl observes and drives a running sworm over its HTTP API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/sworm/internal/agents"
	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/remote"
)

const usage = `usage: swormctl [flags] <command>

commands:
  status      one-line world summary
  state       full world snapshot (JSON)
  tick        advance one tick
  start|stop  set or clear the run flag
  election    force an election in every state
  history     recorded metrics (-n limit)
  news        recorded news, newest first (-n limit)
  brain       learner snapshots
  chronicle   current front page
  watch       print status every -every until interrupted
`

func main() {
	apiURL := flag.String("api", envOrDefault("SWORM_API_URL", "http://localhost:8080"), "sworm API base URL")
	adminKey := flag.String("key", os.Getenv("SWORM_ADMIN_KEY"), "admin bearer token")
	limit := flag.Int("n", 20, "history and news limit")
	every := flag.Duration("every", 5*time.Second, "watch interval")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := remote.NewClient(*apiURL, *adminKey)
	if err := run(ctx, c, os.Stdout, flag.Arg(0), *limit, *every); err != nil {
		fmt.Fprintf(os.Stderr, "swormctl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *remote.Client, w io.Writer, cmd string, limit int, every time.Duration) error {
	switch cmd {
	case "status":
		return printStatus(ctx, c, w)
	case "state":
		st, err := c.State(ctx)
		if err != nil {
			return err
		}
		return printJSON(w, st)
	case "tick":
		res, err := c.Tick(ctx)
		if err != nil {
			return err
		}
		printTick(w, res)
		return nil
	case "start", "stop":
		var rs *remote.RunState
		var err error
		if cmd == "start" {
			rs, err = c.Start(ctx)
		} else {
			rs, err = c.Stop(ctx)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "running=%v tick=%d\n", rs.Running, rs.Tick)
		return nil
	case "election":
		rep, err := c.Election(ctx)
		if err != nil {
			return err
		}
		for _, r := range rep.Results {
			outcome := "re-elected"
			if !r.IncumbentWon {
				outcome = "defeated"
			}
			fmt.Fprintf(w, "state %s: incumbent %s (%d-%d, challenger %.1f)\n",
				r.StateID, outcome, r.IncumbentVotes, r.ChallengerVotes, r.ChallengerScore)
		}
		return nil
	case "history":
		recs, err := c.History(ctx, limit)
		if err != nil {
			return err
		}
		for _, r := range recs {
			m := r.Metrics
			fmt.Fprintf(w, "%6d  pop %4d  trust %5.1f  happy %5.1f  wealth %7s  gini %.3f  news %d\n",
				r.Tick, m.Population, m.AvgTrust, m.AvgHappiness, humanize.CommafWithDigits(m.AvgWealth, 2), m.Inequality, len(r.News))
		}
		return nil
	case "news":
		news, err := c.News(ctx, limit)
		if err != nil {
			return err
		}
		for _, n := range news {
			line := fmt.Sprintf("%6d  %-22s %-18s %s", n.Tick, n.Outcome, n.Actor, n.Locale)
			if n.Reason != "" {
				line += " (" + n.Reason + ")"
			}
			fmt.Fprintln(w, line)
		}
		return nil
	case "brain":
		snaps, err := c.Brain(ctx)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(snaps))
		for id := range snaps {
			ids = append(ids, string(id))
		}
		sort.Strings(ids)
		for _, id := range ids {
			s := snaps[agents.AgentID(id)]
			fmt.Fprintf(w, "%s  %-13s  eps %.3f  memory %d/%d  updates %s\n",
				id, s.Kind, s.Epsilon, s.MemorySize, s.Capacity, humanize.Comma(int64(s.Updates)))
		}
		return nil
	case "chronicle":
		ch, err := c.Chronicle(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "[%s, tick %d]\n%s\n", ch.Source, ch.Tick, ch.Content)
		return nil
	case "watch":
		if err := c.WaitReady(ctx); err != nil {
			return err
		}
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			if err := printStatus(ctx, c, w); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func printStatus(ctx context.Context, c *remote.Client, w io.Writer) error {
	st, err := c.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s  tick %d  running=%v  pop %d  trust %.1f  happy %.1f  budget %s\n",
		st.Name, st.Tick, st.Running, st.Population, st.AvgTrust, st.AvgHappiness, humanize.FormatFloat("#,###.##", st.SLBudget))
	return nil
}

func printTick(w io.Writer, res *engine.TickResult) {
	m := res.Metrics
	fmt.Fprintf(w, "tick %d  cycles %v  pop %d  trust %.1f  happy %.1f  inflation %.3f  unemployment %.3f\n",
		res.Tick, res.Cycles, m.Population, m.AvgTrust, m.AvgHappiness, m.Inflation, m.Unemployment)
	for _, n := range res.News {
		if n.Tick == res.Tick {
			fmt.Fprintf(w, "  %s: %s (%s) %s\n", n.Outcome, n.Actor, n.Locale, n.Reason)
		}
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
