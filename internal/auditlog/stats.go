package auditlog

import (
	"context"
	"sort"
	"time"

	"github.com/keygate/keygate/internal/model"
)

const (
	topN             = 5
	recentN          = 10
	statsEntryBudget = 10000 // max entries considered per stats run
)

// Stats aggregates entries from the trailing windowDays into counters and
// rankings. Top-N ties keep first-encountered order.
func (r *Reader) Stats(ctx context.Context, windowDays int) (model.LogStats, error) {
	if windowDays <= 0 {
		windowDays = 7
	}
	start := r.now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	entries, err := r.Query(ctx, Filter{Start: start}, statsEntryBudget)
	if err != nil {
		return model.LogStats{}, err
	}

	stats := model.LogStats{DailyCounts: map[string]int{}}
	users := map[string]struct{}{}
	toolCounts := newRanking()
	userCounts := newRanking()

	for _, e := range entries {
		if t := e.Time(); !t.IsZero() {
			stats.DailyCounts[t.UTC().Format(dayFormat)]++
		}
		if e.UserName != "" {
			users[e.UserName] = struct{}{}
		}
		if e.Action != model.ActionAccess {
			continue
		}
		stats.TotalAccesses++
		toolCounts.add(e.ToolID)
		userCounts.add(e.UserName)
	}

	stats.UniqueUsers = len(users)
	stats.TopTools = toolCounts.top(topN)
	stats.TopUsers = userCounts.top(topN)
	if len(entries) > recentN {
		entries = entries[:recentN]
	}
	stats.Recent = entries
	return stats, nil
}

// ranking counts names while remembering first-encounter order so that
// equal counts sort stably.
type ranking struct {
	counts map[string]int
	order  []string
}

func newRanking() *ranking {
	return &ranking{counts: map[string]int{}}
}

func (rk *ranking) add(name string) {
	if name == "" {
		return
	}
	if _, seen := rk.counts[name]; !seen {
		rk.order = append(rk.order, name)
	}
	rk.counts[name]++
}

func (rk *ranking) top(n int) []model.NameCount {
	out := make([]model.NameCount, 0, len(rk.order))
	for _, name := range rk.order {
		out = append(out, model.NameCount{Name: name, Count: rk.counts[name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
