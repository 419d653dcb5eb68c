package social

// MaxNews is the capacity of the news feed.
const MaxNews = 10

// NewsEntry is one structured event record shown to observers.
type NewsEntry struct {
	Tick    uint64 `json:"tick"`
	Outcome string `json:"outcome"`
	Actor   string `json:"winner_name"`
	Locale  string `json:"state_id"`
	Reason  string `json:"reason"`
}

// NewsFeed is a bounded, most-recent-first sequence of entries.
type NewsFeed struct {
	entries []NewsEntry
	pushed  uint64
}

// Push inserts e at the front and drops the oldest entries beyond MaxNews.
func (f *NewsFeed) Push(e NewsEntry) {
	f.entries = append(f.entries, NewsEntry{})
	copy(f.entries[1:], f.entries)
	f.entries[0] = e
	if len(f.entries) > MaxNews {
		f.entries = f.entries[:MaxNews]
	}
	f.pushed++
}

// Entries returns a copy of the feed, most recent first.
func (f *NewsFeed) Entries() []NewsEntry {
	out := make([]NewsEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Pushed returns the total number of entries ever pushed.
func (f *NewsFeed) Pushed() uint64 {
	return f.pushed
}

// Since returns the entries pushed after the feed had seen mark pushes, oldest
// first. Entries already evicted are not returned.
func (f *NewsFeed) Since(mark uint64) []NewsEntry {
	n := int(f.pushed - mark)
	if n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]NewsEntry, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, f.entries[i])
	}
	return out
}
