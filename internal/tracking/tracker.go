package tracking

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Tracker records filtered runs in a local SQLite database.
type Tracker struct {
	db *sql.DB
}

// NewTracker opens or creates the database at dbPath.
func NewTracker(dbPath string) (*Tracker, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Tracker{db: db}, nil
}

// Record stores one event and prunes events older than 90 days.
func (t *Tracker) Record(e Event) error {
	_, err := t.db.Exec(insertSQL,
		e.Command, e.FilterName, e.FilterHash,
		e.InputTokens, e.OutputTokens, e.ExitCode, e.ExecTimeMs)
	if err != nil {
		return fmt.Errorf("track: %w", err)
	}

	t.db.Exec(cleanupSQL)
	return nil
}

// Summary returns totals over every stored event.
func (t *Tracker) Summary() (Totals, error) {
	var s Totals
	err := t.db.QueryRow(summarySQL).Scan(&s.Commands, &s.InputTokens, &s.OutputTokens, &s.ExecTimeMs)
	if err != nil {
		return Totals{}, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

// Daily returns per-day totals for the last days days, newest first.
func (t *Tracker) Daily(days int) ([]DayStats, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := t.db.Query(dailySQL, fmt.Sprintf("-%d", days))
	if err != nil {
		return nil, fmt.Errorf("daily: %w", err)
	}
	defer rows.Close()

	var stats []DayStats
	for rows.Next() {
		var d DayStats
		if err := rows.Scan(&d.Day, &d.Commands, &d.InputTokens, &d.OutputTokens); err != nil {
			return nil, fmt.Errorf("daily scan: %w", err)
		}
		stats = append(stats, d)
	}
	return stats, rows.Err()
}

// ByFilter returns per-filter totals, most tokens saved first.
func (t *Tracker) ByFilter(limit int) ([]FilterStats, error) {
	rows, err := t.db.Query(byFilterSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("by filter: %w", err)
	}
	defer rows.Close()

	var stats []FilterStats
	for rows.Next() {
		var s FilterStats
		if err := rows.Scan(&s.Filter, &s.Commands, &s.InputTokens, &s.OutputTokens); err != nil {
			return nil, fmt.Errorf("by filter scan: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Recent returns the last n events, newest first.
func (t *Tracker) Recent(n int) ([]Event, error) {
	rows, err := t.db.Query(recentSQL, n)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Command, &e.FilterName, &e.InputTokens, &e.OutputTokens, &e.ExitCode, &e.ExecTimeMs, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("recent scan: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close closes the database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// DBPath resolves the tracking database path: TOKF_DB_PATH, then the
// configured path, then the per-user data directory.
func DBPath(configPath string) string {
	if p := os.Getenv("TOKF_DB_PATH"); p != "" {
		return p
	}
	if configPath != "" {
		return configPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "tokf", "tracking.db")
}
