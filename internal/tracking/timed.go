package tracking

import "time"

// TimedExecution measures a run from Start and records it with its duration.
type TimedExecution struct {
	tracker   *Tracker
	startTime time.Time
}

// Start begins timing. A nil tracker makes Track a no-op.
func Start(tracker *Tracker) *TimedExecution {
	return &TimedExecution{
		tracker:   tracker,
		startTime: time.Now(),
	}
}

// Track records e with the elapsed time since Start.
func (te *TimedExecution) Track(e Event) error {
	if te.tracker == nil {
		return nil
	}
	e.ExecTimeMs = time.Since(te.startTime).Milliseconds()
	return te.tracker.Record(e)
}
