package admin

import (
	"context"
	"sort"
	"time"

	"gulf-store/internal/domain"
	"gulf-store/internal/kv"
	"gulf-store/internal/stats"
	"gulf-store/internal/tables"

	"github.com/shopspring/decimal"
)

// TopSearchLimit caps the search terms shown on the dashboard.
const TopSearchLimit = 8

// SourceShare is one referral source with its share of all visits.
type SourceShare struct {
	Source  string `json:"source"`
	Count   int    `json:"count"`
	Percent string `json:"percent"`
}

// TermCount is one search term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Dashboard is the read-only stats view.
type Dashboard struct {
	VisitorsToday int           `json:"visitorsToday"`
	Sources       []SourceShare `json:"sources"`
	TopSearches   []TermCount   `json:"topSearches"`
	Orders        int           `json:"orders"`
}

// Dashboard summarises visits for the UTC day of now, traffic sources and
// the most searched terms.
func (c *Console) Dashboard(ctx context.Context, now time.Time) Dashboard {
	st := kv.Load(ctx, c.store, tables.Stats)
	return Dashboard{
		VisitorsToday: st.Daily[stats.DayKey(now)],
		Sources:       SourceShares(st),
		TopSearches:   TopSearches(kv.Load(ctx, c.store, tables.SearchStats), TopSearchLimit),
		Orders:        len(kv.Load(ctx, c.store, tables.Orders)),
	}
}

// SourceShares sorts sources by count, descending, each with its percentage
// of the total to one decimal.
func SourceShares(st domain.StoreStats) []SourceShare {
	total := 0
	for _, n := range st.Sources {
		total += n
	}
	out := make([]SourceShare, 0, len(st.Sources))
	for source, n := range st.Sources {
		pct := decimal.Zero
		if total > 0 {
			pct = decimal.NewFromInt(int64(n)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(total)))
		}
		out = append(out, SourceShare{Source: source, Count: n, Percent: pct.StringFixed(1)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// TopSearches returns at most limit terms, most searched first.
func TopSearches(s domain.SearchStats, limit int) []TermCount {
	out := make([]TermCount, 0, len(s))
	for term, n := range s {
		out = append(out, TermCount{Term: term, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Term < out[j].Term
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
