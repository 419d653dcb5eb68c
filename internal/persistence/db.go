// Package persistence stores simulation history: a SQLite store for local
// runs and a Firestore sink for hosted ones.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/social"
)

// ErrNoHistory is returned when no tick has been recorded yet.
var ErrNoHistory = errors.New("no history recorded")

// DB wraps a SQLite connection for history persistence. Records are only
// ever appended: each Open starts a new run, and every record belongs to the
// run that wrote it.
type DB struct {
	conn *sqlx.DB
	run  string
}

// Open opens or creates a SQLite database at the given path and starts a new run.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db := &DB{conn: conn, run: uuid.NewString()}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// RunID identifies the run this connection records into.
func (db *DB) RunID() string {
	return db.run
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tick_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		population INTEGER NOT NULL,
		avg_happiness REAL NOT NULL,
		avg_wealth REAL NOT NULL,
		avg_trust REAL NOT NULL,
		inflation REAL NOT NULL,
		unemployment REAL NOT NULL,
		inequality REAL NOT NULL,
		sl_budget REAL NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tick_news (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		history_id INTEGER NOT NULL REFERENCES tick_history(id),
		tick INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		actor TEXT NOT NULL,
		locale TEXT NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tick_history_run ON tick_history(run_id, id);
	CREATE INDEX IF NOT EXISTS idx_tick_news_history ON tick_news(history_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type historyRow struct {
	ID           int64   `db:"id"`
	RunID        string  `db:"run_id"`
	Tick         uint64  `db:"tick"`
	Population   int     `db:"population"`
	AvgHappiness float64 `db:"avg_happiness"`
	AvgWealth    float64 `db:"avg_wealth"`
	AvgTrust     float64 `db:"avg_trust"`
	Inflation    float64 `db:"inflation"`
	Unemployment float64 `db:"unemployment"`
	Inequality   float64 `db:"inequality"`
	SLBudget     float64 `db:"sl_budget"`
	RecordedAt   string  `db:"recorded_at"`
}

type newsRow struct {
	HistoryID int64  `db:"history_id"`
	Tick      uint64 `db:"tick"`
	Outcome   string `db:"outcome"`
	Actor     string `db:"actor"`
	Locale    string `db:"locale"`
	Reason    string `db:"reason"`
}

func (n newsRow) entry() social.NewsEntry {
	return social.NewsEntry{Tick: n.Tick, Outcome: n.Outcome, Actor: n.Actor, Locale: n.Locale, Reason: n.Reason}
}

// RecordTick appends the tick's metrics and its news in one transaction.
// Recording the same tick twice (a forced election) yields two records.
func (db *DB) RecordTick(ctx context.Context, rec engine.HistoryRecord) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	m := rec.Metrics
	res, err := tx.NamedExecContext(ctx, `INSERT INTO tick_history
		(run_id, tick, population, avg_happiness, avg_wealth, avg_trust, inflation, unemployment, inequality, sl_budget, recorded_at)
		VALUES (:run_id, :tick, :population, :avg_happiness, :avg_wealth, :avg_trust, :inflation, :unemployment, :inequality, :sl_budget, :recorded_at)`,
		historyRow{
			RunID:        db.run,
			Tick:         rec.Tick,
			Population:   m.Population,
			AvgHappiness: m.AvgHappiness,
			AvgWealth:    m.AvgWealth,
			AvgTrust:     m.AvgTrust,
			Inflation:    m.Inflation,
			Unemployment: m.Unemployment,
			Inequality:   m.Inequality,
			SLBudget:     m.SLBudget,
			RecordedAt:   time.Now().UTC().Format(time.RFC3339),
		})
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	historyID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history id: %w", err)
	}

	for _, n := range rec.News {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO tick_news (history_id, tick, outcome, actor, locale, reason) VALUES (?, ?, ?, ?, ?, ?)",
			historyID, n.Tick, n.Outcome, n.Actor, n.Locale, n.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert news: %w", err)
		}
	}
	return tx.Commit()
}

// History returns up to limit of this run's most recent records, oldest
// first, each with the news recorded alongside it.
func (db *DB) History(ctx context.Context, limit int) ([]engine.HistoryRecord, error) {
	var rows []historyRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM tick_history WHERE run_id = ? ORDER BY id DESC LIMIT ?", db.run, limit)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoHistory
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	query, args, err := sqlx.In(
		"SELECT history_id, tick, outcome, actor, locale, reason FROM tick_news WHERE history_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("build news query: %w", err)
	}
	var news []newsRow
	if err := db.conn.SelectContext(ctx, &news, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select news: %w", err)
	}
	byRecord := make(map[int64][]social.NewsEntry)
	for _, n := range news {
		byRecord[n.HistoryID] = append(byRecord[n.HistoryID], n.entry())
	}

	out := make([]engine.HistoryRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, engine.HistoryRecord{
			Tick: r.Tick,
			Metrics: engine.Metrics{
				Population:   r.Population,
				AvgHappiness: r.AvgHappiness,
				AvgWealth:    r.AvgWealth,
				AvgTrust:     r.AvgTrust,
				Inflation:    r.Inflation,
				Unemployment: r.Unemployment,
				Inequality:   r.Inequality,
				SLBudget:     r.SLBudget,
			},
			News: byRecord[r.ID],
		})
	}
	return out, nil
}

// RecentNews returns this run's most recent news entries, newest first.
func (db *DB) RecentNews(ctx context.Context, limit int) ([]social.NewsEntry, error) {
	var rows []newsRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT n.history_id, n.tick, n.outcome, n.actor, n.locale, n.reason
		FROM tick_news n JOIN tick_history h ON h.id = n.history_id
		WHERE h.run_id = ?
		ORDER BY n.id DESC LIMIT ?`, db.run, limit)
	if err != nil {
		return nil, fmt.Errorf("select news: %w", err)
	}
	out := make([]social.NewsEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value; missing keys return "" and no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// LastTick returns the tick of the most recently appended record, whichever
// run wrote it.
func (db *DB) LastTick(ctx context.Context) (uint64, error) {
	var tick uint64
	err := db.conn.GetContext(ctx, &tick, "SELECT tick FROM tick_history ORDER BY id DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNoHistory
	}
	if err != nil {
		return 0, err
	}
	slog.Debug("last recorded tick", "tick", tick)
	return tick, nil
}
