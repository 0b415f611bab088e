// Package history defines the per-session rep history store and errors.
package history

import (
	"context"
	"time"
)

// Entry represents one recorded rep, ranked by score.
type Entry struct {
	Rank     int
	RepIndex int
	Score    float64
	Duration time.Duration
	StartTS  time.Time
	Faults   int
}

// SessionStats summarizes every rep recorded so far.
type SessionStats struct {
	Reps          int
	MeanScore     float64
	ScoreStdDev   float64
	MeanDuration  time.Duration
	TotalFaults   int
	BestRepIndex  int
	WorstRepIndex int
}

// Store provides read/write access to a session's rep history.
type Store interface {
	// Record adds one completed rep. Rep indexes are unique within a
	// session; recording the same index twice replaces the earlier entry.
	Record(ctx context.Context, e Entry) error

	// ByIndex returns the entry and current rank for a rep.
	// Returns ErrNotFound if the rep is unknown.
	ByIndex(ctx context.Context, repIndex int) (Entry, error)

	// Best returns the highest-ranked rep so far.
	Best(ctx context.Context) (Entry, error)

	// TopN returns the top-N entries ordered by score desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of reps recorded.
	Count(ctx context.Context) int

	// Stats returns aggregate statistics over all recorded reps.
	Stats(ctx context.Context) (SessionStats, error)
}
