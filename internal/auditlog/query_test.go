package auditlog

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/keygate/keygate/internal/model"
)

// seedEntries writes entries straight to the store, one file per calendar
// day, in chronological order.
func seedEntries(t *testing.T, store LogStore, entries []model.AccessLogEntry) {
	t.Helper()
	ctx := context.Background()
	for i, e := range entries {
		if e.ID == "" {
			e.ID = fmt.Sprintf("seed-%d", i)
		}
		day := e.Time()
		if day.IsZero() {
			t.Fatalf("seed entry %d has no parseable timestamp", i)
		}
		line, err := jsonLine(e)
		if err != nil {
			t.Fatalf("marshal seed entry: %v", err)
		}
		if err := store.Append(ctx, fileNameForDay(day), line); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func jsonLine(e model.AccessLogEntry) ([]byte, error) {
	return json.Marshal(e)
}

func at(day, clock string) string {
	return day + "T" + clock + "Z"
}

func accessEntry(ts, user, tool string) model.AccessLogEntry {
	return model.AccessLogEntry{
		Timestamp: ts,
		UserName:  user,
		ToolID:    tool,
		Action:    model.ActionAccess,
		IP:        "203.0.113.7",
	}
}

func newTestReader(t *testing.T) (*Reader, *FileStore) {
	t.Helper()
	store := NewFileStore(t.TempDir())
	r := NewReader(store, quietLogger())
	r.now = func() time.Time { return logNow }
	return r, store
}

func TestQueryNewestFirst(t *testing.T) {
	r, store := newTestReader(t)
	seedEntries(t, store, []model.AccessLogEntry{
		accessEntry(at("2025-06-13", "09:00:00"), "alice", "research-agent"),
		accessEntry(at("2025-06-14", "09:00:00"), "bob", "research-agent"),
		accessEntry(at("2025-06-14", "15:00:00"), "carol", "playground"),
		accessEntry(at("2025-06-15", "08:00:00"), "dave", "research-agent"),
	})

	entries, err := r.Query(context.Background(), Filter{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"dave", "carol", "bob", "alice"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i, user := range want {
		if entries[i].UserName != user {
			t.Errorf("entry %d = %q, want %q", i, entries[i].UserName, user)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	r, store := newTestReader(t)
	var seed []model.AccessLogEntry
	for i := 0; i < 10; i++ {
		seed = append(seed, accessEntry(at("2025-06-15", fmt.Sprintf("0%d:00:00", i)), "alice", "t"))
	}
	seedEntries(t, store, seed)

	entries, err := r.Query(context.Background(), Filter{}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Newest of the day come back first.
	if entries[0].Timestamp != at("2025-06-15", "09:00:00") {
		t.Errorf("first entry = %s, want the newest", entries[0].Timestamp)
	}
}

func TestQueryFilters(t *testing.T) {
	r, store := newTestReader(t)
	seedEntries(t, store, []model.AccessLogEntry{
		accessEntry(at("2025-06-13", "09:00:00"), "alice", "research-agent"),
		accessEntry(at("2025-06-14", "09:00:00"), "bob", "playground"),
		accessEntry(at("2025-06-15", "09:00:00"), "alice", "playground"),
	})
	ctx := context.Background()

	byUser, _ := r.Query(ctx, Filter{UserName: "alice"}, 0)
	if len(byUser) != 2 {
		t.Errorf("UserName filter: got %d, want 2", len(byUser))
	}

	byTool, _ := r.Query(ctx, Filter{ToolID: "playground"}, 0)
	if len(byTool) != 2 {
		t.Errorf("ToolID filter: got %d, want 2", len(byTool))
	}

	since := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	byStart, _ := r.Query(ctx, Filter{Start: since}, 0)
	if len(byStart) != 2 {
		t.Errorf("Start filter: got %d, want 2", len(byStart))
	}

	both, _ := r.Query(ctx, Filter{UserName: "alice", ToolID: "playground"}, 0)
	if len(both) != 1 || both[0].Timestamp != at("2025-06-15", "09:00:00") {
		t.Errorf("combined filter: got %+v", both)
	}
}

func TestQuerySkipsCorruptLines(t *testing.T) {
	r, store := newTestReader(t)
	ctx := context.Background()
	name := fileNameForDay(logNow)

	good := accessEntry(at("2025-06-15", "09:00:00"), "alice", "t")
	line, _ := jsonLine(good)
	store.Append(ctx, name, line)
	store.Append(ctx, name, []byte(`{"truncated":`)) // simulated torn write
	line2, _ := jsonLine(accessEntry(at("2025-06-15", "10:00:00"), "bob", "t"))
	store.Append(ctx, name, line2)

	entries, err := r.Query(ctx, Filter{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (corrupt line skipped)", len(entries))
	}
	if entries[0].UserName != "bob" || entries[1].UserName != "alice" {
		t.Errorf("unexpected order: %s, %s", entries[0].UserName, entries[1].UserName)
	}
}

func TestQueryIgnoresForeignFiles(t *testing.T) {
	r, store := newTestReader(t)
	ctx := context.Background()

	store.Append(ctx, "notes.txt", []byte("not a log"))
	line, _ := jsonLine(accessEntry(at("2025-06-15", "09:00:00"), "alice", "t"))
	store.Append(ctx, fileNameForDay(logNow), line)

	entries, err := r.Query(ctx, Filter{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d entries, want 1", len(entries))
	}
}

func TestQueryEmptyStore(t *testing.T) {
	r, _ := newTestReader(t)
	entries, err := r.Query(context.Background(), Filter{}, 0)
	if err != nil {
		t.Fatalf("Query on empty store: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries, want 0", len(entries))
	}
}

func TestQueryReadsRotatedFiles(t *testing.T) {
	r, store := newTestReader(t)
	ctx := context.Background()

	// A rotated file from earlier in the day plus the active file.
	rotated := rotatedName(fileNameForDay(logNow), logNow.Add(-6*time.Hour))
	line1, _ := jsonLine(accessEntry(at("2025-06-15", "03:00:00"), "early", "t"))
	store.Append(ctx, rotated, line1)
	line2, _ := jsonLine(accessEntry(at("2025-06-15", "11:00:00"), "late", "t"))
	store.Append(ctx, fileNameForDay(logNow), line2)

	entries, err := r.Query(ctx, Filter{}, 0)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (rotated file included)", len(entries))
	}
}
