package tracking

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME DEFAULT (datetime('now')),
	command TEXT NOT NULL,
	filter_name TEXT NOT NULL DEFAULT '',
	filter_hash TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	exit_code INTEGER NOT NULL DEFAULT 0,
	exec_time_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS events_filter ON events (filter_name);
`

const cleanupSQL = `DELETE FROM events WHERE timestamp < datetime('now', '-90 days');`

const insertSQL = `
INSERT INTO events (command, filter_name, filter_hash, input_tokens, output_tokens, exit_code, exec_time_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);
`

const summarySQL = `
SELECT
	COUNT(*),
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COALESCE(SUM(exec_time_ms), 0)
FROM events;
`

const dailySQL = `
SELECT
	date(timestamp) AS day,
	COUNT(*),
	SUM(input_tokens),
	SUM(output_tokens)
FROM events
WHERE timestamp >= datetime('now', ? || ' days')
GROUP BY date(timestamp)
ORDER BY day DESC;
`

const recentSQL = `
SELECT command, filter_name, input_tokens, output_tokens, exit_code, exec_time_ms, timestamp
FROM events
ORDER BY id DESC
LIMIT ?;
`

const byFilterSQL = `
SELECT
	filter_name,
	COUNT(*),
	SUM(input_tokens),
	SUM(output_tokens)
FROM events
GROUP BY filter_name
ORDER BY SUM(input_tokens) - SUM(output_tokens) DESC
LIMIT ?;
`

// Totals is the shared shape of every aggregate row.
type Totals struct {
	Commands     int   `json:"commands"`
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	ExecTimeMs   int64 `json:"exec_time_ms,omitempty"`
}

// Saved is the number of tokens the filters removed.
func (t Totals) Saved() int {
	return t.InputTokens - t.OutputTokens
}

// SavingsPct is Saved as a percentage of the input.
func (t Totals) SavingsPct() float64 {
	if t.InputTokens == 0 {
		return 0
	}
	return float64(t.Saved()) / float64(t.InputTokens) * 100
}

// DayStats holds the totals of one calendar day.
type DayStats struct {
	Day string `json:"day"`
	Totals
}

// FilterStats holds the totals of one filter.
type FilterStats struct {
	Filter string `json:"filter"`
	Totals
}

// Event is one filtered command run.
type Event struct {
	Command      string `json:"command"`
	FilterName   string `json:"filter"`
	FilterHash   string `json:"filter_hash,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	ExitCode     int    `json:"exit_code"`
	ExecTimeMs   int64  `json:"exec_time_ms"`
	Timestamp    string `json:"timestamp,omitempty"`
}
