// Package stats records storefront visits and search terms for the admin
// dashboard.
package stats

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/metrics"
	"gulf-store/internal/tables"
)

// DirectSource is the bucket for visits without a recognised referrer.
const DirectSource = "رابط مباشر"

// sources are checked in order; the first substring hit wins.
var sources = []struct {
	needle string
	label  string
}{
	{"tiktok", "TikTok"},
	{"instagram", "Instagram"},
	{"snapchat", "Snapchat"},
	{"google", "Google"},
	{"facebook", "Facebook"},
}

// ClassifySource maps a referrer URL to a traffic source label.
func ClassifySource(referrer string) string {
	ref := strings.ToLower(referrer)
	for _, s := range sources {
		if strings.Contains(ref, s.needle) {
			return s.label
		}
	}
	return DirectSource
}

// DayKey formats t as the UTC calendar date used to bucket daily visits.
func DayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// Tracker counts visits per day and per source.
type Tracker struct {
	store   *kv.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTracker returns a Tracker writing to store; m may be nil.
func NewTracker(store *kv.Store, logger *slog.Logger, m *metrics.Metrics) *Tracker {
	return &Tracker{store: store, logger: logger.With("component", "stats"), metrics: m}
}

// RecordVisit counts one visit at now from referrer and returns the source
// it was attributed to. A failed write is logged; the visit is not retried.
func (t *Tracker) RecordVisit(ctx context.Context, referrer string, now time.Time) string {
	source := ClassifySource(referrer)
	day := DayKey(now)
	if _, err := kv.Update(ctx, t.store, tables.Stats, func(s domain.StoreStats) domain.StoreStats {
		if s.Daily == nil {
			s.Daily = map[string]int{}
		}
		if s.Sources == nil {
			s.Sources = map[string]int{}
		}
		s.Daily[day]++
		s.Sources[source]++
		return s
	}); err != nil {
		t.logger.Warn("visit not recorded", "source", source, "error", err)
	}
	if t.metrics != nil {
		t.metrics.Visits.WithLabelValues(source).Inc()
	}
	return source
}
