package stats

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/metrics"
	"gulf-store/internal/tables"
)

const (
	// DefaultDebounce is how long a query must stay unchanged before it counts.
	DefaultDebounce = 2 * time.Second
	// MinQueryRunes is the shortest query worth recording.
	MinQueryRunes = 3
)

// NormalizeTerm lowercases and trims a query; ok is false for queries too
// short to record.
func NormalizeTerm(query string) (term string, ok bool) {
	term = strings.ToLower(strings.TrimSpace(query))
	return term, utf8.RuneCountInString(term) >= MinQueryRunes
}

// SearchRecorder commits a search term once typing on a stream has been idle
// for the debounce window. Each stream (a shopper session) has at most one
// pending term.
type SearchRecorder struct {
	store   *kv.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	window  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
}

// NewSearchRecorder returns a recorder with the given idle window; a
// non-positive window uses DefaultDebounce.
func NewSearchRecorder(store *kv.Store, logger *slog.Logger, m *metrics.Metrics, window time.Duration) *SearchRecorder {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &SearchRecorder{
		store:   store,
		logger:  logger.With("component", "search_stats"),
		metrics: m,
		window:  window,
		pending: map[string]*time.Timer{},
	}
}

// Observe reports the current query text of streamID. Any pending term for
// the stream is cancelled; a query of at least three runes is scheduled.
func (r *SearchRecorder) Observe(streamID, query string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if t, ok := r.pending[streamID]; ok {
		t.Stop()
		delete(r.pending, streamID)
	}
	term, ok := NormalizeTerm(query)
	if !ok {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(r.window, func() {
		r.mu.Lock()
		if r.pending[streamID] != timer {
			r.mu.Unlock()
			return
		}
		delete(r.pending, streamID)
		r.mu.Unlock()
		r.commit(term)
	})
	r.pending[streamID] = timer
}

// Pending reports how many streams have a term waiting to be committed.
func (r *SearchRecorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close cancels every pending term; later Observe calls are ignored.
func (r *SearchRecorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, t := range r.pending {
		t.Stop()
		delete(r.pending, id)
	}
}

func (r *SearchRecorder) commit(term string) {
	_, err := kv.Update(context.Background(), r.store, tables.SearchStats, func(s domain.SearchStats) domain.SearchStats {
		if s == nil {
			s = domain.SearchStats{}
		}
		s[term]++
		return s
	})
	if err != nil {
		r.logger.Warn("search term not recorded", "term", term, "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.SearchesRecorded.Inc()
	}
	r.logger.Debug("search term recorded", "term", term)
}
