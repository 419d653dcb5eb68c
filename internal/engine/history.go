package engine

import (
	"context"

	"github.com/talgya/sworm/internal/social"
)

// HistoryRecord is the per-tick snapshot handed to a HistorySink.
type HistoryRecord struct {
	Tick    uint64             `json:"tick"`
	Metrics Metrics            `json:"metrics"`
	News    []social.NewsEntry `json:"news,omitempty"` // Entries pushed during the tick, oldest first
}

// HistorySink persists tick history. Failures never abort a tick.
type HistorySink interface {
	RecordTick(ctx context.Context, rec HistoryRecord) error
}
