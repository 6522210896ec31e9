package tracking

import (
	"path/filepath"
	"testing"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tracker, err := NewTracker(dbPath)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	t.Cleanup(func() { tracker.Close() })
	return tracker
}

func TestNewTrackerCreatesDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "tracking.db")
	tracker, err := NewTracker(dbPath)
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	tracker.Close()
}

func TestRecordAndSummary(t *testing.T) {
	tracker := newTestTracker(t)

	err := tracker.Record(Event{Command: "git status", FilterName: "git/status", InputTokens: 1000, OutputTokens: 200, ExecTimeMs: 50})
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	s, err := tracker.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Commands != 1 {
		t.Errorf("commands = %d", s.Commands)
	}
	if s.Saved() != 800 {
		t.Errorf("saved = %d", s.Saved())
	}
	if pct := s.SavingsPct(); pct < 79 || pct > 81 {
		t.Errorf("savings = %.1f%%", pct)
	}
	if s.ExecTimeMs != 50 {
		t.Errorf("exec time = %d", s.ExecTimeMs)
	}
}

func TestSummaryEmpty(t *testing.T) {
	tracker := newTestTracker(t)
	s, err := tracker.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.Commands != 0 || s.SavingsPct() != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestRecent(t *testing.T) {
	tracker := newTestTracker(t)

	_ = tracker.Record(Event{Command: "cmd1", FilterName: "a", InputTokens: 100, OutputTokens: 30})
	_ = tracker.Record(Event{Command: "cmd2", FilterName: "b", InputTokens: 200, OutputTokens: 50})
	_ = tracker.Record(Event{Command: "cmd3", FilterName: "c", InputTokens: 300, OutputTokens: 80, ExitCode: 2})

	recent, err := tracker.Recent(2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d events, want 2", len(recent))
	}
	if recent[0].Command != "cmd3" || recent[0].FilterName != "c" || recent[0].ExitCode != 2 {
		t.Errorf("first = %+v", recent[0])
	}
	if recent[0].Timestamp == "" {
		t.Error("timestamp should be set by the database")
	}
}

func TestByFilter(t *testing.T) {
	tracker := newTestTracker(t)

	_ = tracker.Record(Event{Command: "git status", FilterName: "git/status", InputTokens: 100, OutputTokens: 90})
	_ = tracker.Record(Event{Command: "cargo test", FilterName: "cargo/test", InputTokens: 5000, OutputTokens: 100})
	_ = tracker.Record(Event{Command: "cargo test -p x", FilterName: "cargo/test", InputTokens: 3000, OutputTokens: 100})

	stats, err := tracker.ByFilter(10)
	if err != nil {
		t.Fatalf("by filter: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d rows, want 2", len(stats))
	}
	if stats[0].Filter != "cargo/test" || stats[0].Commands != 2 || stats[0].Saved() != 7800 {
		t.Errorf("first = %+v", stats[0])
	}
}

func TestDaily(t *testing.T) {
	tracker := newTestTracker(t)
	_ = tracker.Record(Event{Command: "x", InputTokens: 10, OutputTokens: 5})

	daily, err := tracker.Daily(0)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if len(daily) != 1 || daily[0].Commands != 1 {
		t.Errorf("daily = %+v", daily)
	}
}

func TestDBPath(t *testing.T) {
	t.Setenv("TOKF_DB_PATH", "")
	if got := DBPath("/custom/path.db"); got != "/custom/path.db" {
		t.Errorf("config path = %q", got)
	}
	if got := DBPath(""); filepath.Base(got) != "tracking.db" {
		t.Errorf("default path = %q", got)
	}

	t.Setenv("TOKF_DB_PATH", "/env/path.db")
	if got := DBPath("/custom/path.db"); got != "/env/path.db" {
		t.Errorf("env path = %q", got)
	}
}
