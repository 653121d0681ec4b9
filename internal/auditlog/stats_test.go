package auditlog

import (
	"context"
	"testing"

	"github.com/keygate/keygate/internal/model"
)

func TestStats(t *testing.T) {
	r, store := newTestReader(t)
	seed := []model.AccessLogEntry{
		accessEntry(at("2025-06-13", "09:00:00"), "alice", "research-agent"),
		accessEntry(at("2025-06-14", "09:00:00"), "alice", "research-agent"),
		accessEntry(at("2025-06-14", "10:00:00"), "bob", "playground"),
		accessEntry(at("2025-06-15", "09:00:00"), "alice", "research-agent"),
		{
			Timestamp: at("2025-06-15", "10:00:00"),
			UserName:  "mallory",
			ToolID:    "research-agent",
			Action:    model.ActionDenied,
		},
	}
	seedEntries(t, store, seed)

	stats, err := r.Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	// Denied entries count toward users and daily totals but not accesses.
	if stats.TotalAccesses != 4 {
		t.Errorf("TotalAccesses = %d, want 4", stats.TotalAccesses)
	}
	if stats.UniqueUsers != 3 {
		t.Errorf("UniqueUsers = %d, want 3", stats.UniqueUsers)
	}

	if len(stats.TopTools) == 0 || stats.TopTools[0].Name != "research-agent" || stats.TopTools[0].Count != 3 {
		t.Errorf("TopTools = %+v, want research-agent first with 3", stats.TopTools)
	}
	if len(stats.TopUsers) == 0 || stats.TopUsers[0].Name != "alice" || stats.TopUsers[0].Count != 3 {
		t.Errorf("TopUsers = %+v, want alice first with 3", stats.TopUsers)
	}

	if stats.DailyCounts["2025-06-14"] != 2 {
		t.Errorf("DailyCounts[2025-06-14] = %d, want 2", stats.DailyCounts["2025-06-14"])
	}
	if stats.DailyCounts["2025-06-15"] != 2 {
		t.Errorf("DailyCounts[2025-06-15] = %d, want 2", stats.DailyCounts["2025-06-15"])
	}

	// Recent is newest first and includes non-access actions.
	if len(stats.Recent) != 5 {
		t.Fatalf("Recent has %d entries, want 5", len(stats.Recent))
	}
	if stats.Recent[0].Action != model.ActionDenied {
		t.Errorf("Recent[0].Action = %q, want the newest (denied) entry", stats.Recent[0].Action)
	}
}

func TestStatsWindowExcludesOldEntries(t *testing.T) {
	r, store := newTestReader(t)
	seedEntries(t, store, []model.AccessLogEntry{
		accessEntry(at("2025-05-01", "09:00:00"), "ancient", "t"),
		accessEntry(at("2025-06-15", "09:00:00"), "alice", "t"),
	})

	stats, err := r.Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalAccesses != 1 {
		t.Errorf("TotalAccesses = %d, want 1 (old entry outside window)", stats.TotalAccesses)
	}
	if stats.UniqueUsers != 1 {
		t.Errorf("UniqueUsers = %d, want 1", stats.UniqueUsers)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	r, _ := newTestReader(t)
	stats, err := r.Stats(context.Background(), 7)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalAccesses != 0 || stats.UniqueUsers != 0 || len(stats.Recent) != 0 {
		t.Errorf("empty store stats not zero: %+v", stats)
	}
}

func TestRankingTopN(t *testing.T) {
	rk := newRanking()
	for i := 0; i < 3; i++ {
		rk.add("heavy")
	}
	rk.add("light")
	rk.add("also-light")
	rk.add("") // unnamed entries are not ranked

	top := rk.top(2)
	if len(top) != 2 {
		t.Fatalf("top(2) returned %d items", len(top))
	}
	if top[0].Name != "heavy" || top[0].Count != 3 {
		t.Errorf("top[0] = %+v, want heavy:3", top[0])
	}
	// Ties keep first-encounter order.
	if top[1].Name != "light" {
		t.Errorf("top[1] = %+v, want light (first encountered)", top[1])
	}
}
