package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/talgya/sworm/internal/engine"
	"github.com/talgya/sworm/internal/social"
)

// DefaultCollection is the Firestore collection holding one document per run.
// Each run's records live in its "ticks" subcollection.
const DefaultCollection = "runs"

const (
	metaCollection  = "world_meta"
	ticksCollection = "ticks"
)

// FirestoreHistory is a history sink backed by Cloud Firestore. Like the
// SQLite store it only appends, under a run id fixed at construction.
type FirestoreHistory struct {
	client     *firestore.Client
	collection string
	run        string
	seq        atomic.Int64
}

type historyDoc struct {
	Seq          int64     `firestore:"seq"`
	Tick         int64     `firestore:"tick"`
	Population   int       `firestore:"population"`
	AvgHappiness float64   `firestore:"avg_happiness"`
	AvgWealth    float64   `firestore:"avg_wealth"`
	AvgTrust     float64   `firestore:"avg_trust"`
	Inflation    float64   `firestore:"inflation"`
	Unemployment float64   `firestore:"unemployment"`
	Inequality   float64   `firestore:"inequality"`
	SLBudget     float64   `firestore:"sl_budget"`
	News         []newsDoc `firestore:"news"`
	RecordedAt   time.Time `firestore:"recorded_at"`
}

type newsDoc struct {
	Outcome string `firestore:"outcome"`
	Actor   string `firestore:"actor"`
	Locale  string `firestore:"locale"`
	Reason  string `firestore:"reason"`
}

type metaDoc struct {
	Value string `firestore:"value"`
}

// NewFirestoreHistory connects to Firestore in the given project.
func NewFirestoreHistory(ctx context.Context, projectID, collection string) (*FirestoreHistory, error) {
	if projectID == "" {
		return nil, errors.New("firestore: project id required")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return NewFirestoreHistoryFromClient(client, collection), nil
}

// NewFirestoreHistoryFromClient wraps an existing client.
func NewFirestoreHistoryFromClient(client *firestore.Client, collection string) *FirestoreHistory {
	if collection == "" {
		collection = DefaultCollection
	}
	return &FirestoreHistory{client: client, collection: collection, run: uuid.NewString()}
}

// RunID identifies the run this store records into.
func (f *FirestoreHistory) RunID() string {
	return f.run
}

func (f *FirestoreHistory) ticks(run string) *firestore.CollectionRef {
	return f.client.Collection(f.collection).Doc(run).Collection(ticksCollection)
}

// Close releases the Firestore client.
func (f *FirestoreHistory) Close() error {
	return f.client.Close()
}

// RecordTick appends one document per record. Recording the same tick twice
// creates two documents.
func (f *FirestoreHistory) RecordTick(ctx context.Context, rec engine.HistoryRecord) error {
	m := rec.Metrics
	doc := historyDoc{
		Seq:          f.seq.Add(1),
		Tick:         int64(rec.Tick),
		Population:   m.Population,
		AvgHappiness: m.AvgHappiness,
		AvgWealth:    m.AvgWealth,
		AvgTrust:     m.AvgTrust,
		Inflation:    m.Inflation,
		Unemployment: m.Unemployment,
		Inequality:   m.Inequality,
		SLBudget:     m.SLBudget,
		RecordedAt:   time.Now().UTC(),
	}
	for _, n := range rec.News {
		doc.News = append(doc.News, newsDoc{Outcome: n.Outcome, Actor: n.Actor, Locale: n.Locale, Reason: n.Reason})
	}
	ref := f.ticks(f.run).NewDoc()
	if _, err := ref.Create(ctx, doc); err != nil {
		return fmt.Errorf("firestore create %s: %w", ref.ID, err)
	}
	return nil
}

// History returns up to limit of this run's most recent records, oldest first.
func (f *FirestoreHistory) History(ctx context.Context, limit int) ([]engine.HistoryRecord, error) {
	iter := f.ticks(f.run).OrderBy("seq", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	var docs []historyDoc
	for {
		d, ok, err := nextDoc(iter)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		docs = append(docs, d)
	}
	if len(docs) == 0 {
		return nil, ErrNoHistory
	}

	out := make([]engine.HistoryRecord, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		out = append(out, docs[i].record())
	}
	return out, nil
}

// RecentNews returns this run's most recent news entries, newest first.
func (f *FirestoreHistory) RecentNews(ctx context.Context, limit int) ([]social.NewsEntry, error) {
	iter := f.ticks(f.run).OrderBy("seq", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var out []social.NewsEntry
	for len(out) < limit {
		d, ok, err := nextDoc(iter)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		news := d.record().News
		for i := len(news) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, news[i])
		}
	}
	return out, nil
}

// LastTick returns the last tick recorded by the run named in the run_id
// metadata, i.e. the previous run until this one saves its id.
func (f *FirestoreHistory) LastTick(ctx context.Context) (uint64, error) {
	run, err := f.GetMeta("run_id")
	if err != nil {
		return 0, err
	}
	if run == "" {
		return 0, ErrNoHistory
	}
	iter := f.ticks(run).OrderBy("seq", firestore.Desc).Limit(1).Documents(ctx)
	defer iter.Stop()
	d, ok, err := nextDoc(iter)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNoHistory
	}
	return uint64(d.Tick), nil
}

// nextDoc decodes the next document; ok is false once the iterator is done.
func nextDoc(iter *firestore.DocumentIterator) (historyDoc, bool, error) {
	var d historyDoc
	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return d, false, nil
	}
	if err != nil {
		return d, false, fmt.Errorf("firestore query: %w", err)
	}
	if err := snap.DataTo(&d); err != nil {
		return d, false, fmt.Errorf("decode %s: %w", snap.Ref.ID, err)
	}
	return d, true, nil
}

func (d historyDoc) record() engine.HistoryRecord {
	rec := engine.HistoryRecord{
		Tick: uint64(d.Tick),
		Metrics: engine.Metrics{
			Population:   d.Population,
			AvgHappiness: d.AvgHappiness,
			AvgWealth:    d.AvgWealth,
			AvgTrust:     d.AvgTrust,
			Inflation:    d.Inflation,
			Unemployment: d.Unemployment,
			Inequality:   d.Inequality,
			SLBudget:     d.SLBudget,
		},
	}
	for _, n := range d.News {
		rec.News = append(rec.News, social.NewsEntry{
			Tick:    rec.Tick,
			Outcome: n.Outcome,
			Actor:   n.Actor,
			Locale:  n.Locale,
			Reason:  n.Reason,
		})
	}
	return rec
}

// SaveMeta stores a run metadata value.
func (f *FirestoreHistory) SaveMeta(key, value string) error {
	_, err := f.client.Collection(metaCollection).Doc(key).Set(context.Background(), metaDoc{Value: value})
	return err
}

// GetMeta reads a run metadata value; missing keys return "" and no error.
func (f *FirestoreHistory) GetMeta(key string) (string, error) {
	snap, err := f.client.Collection(metaCollection).Doc(key).Get(context.Background())
	if status.Code(err) == codes.NotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("firestore get %s: %w", key, err)
	}
	var d metaDoc
	if err := snap.DataTo(&d); err != nil {
		return "", err
	}
	return d.Value, nil
}
