// Package aggregate accumulates per-metric extremes over the frames of one
// repetition, from the rep-start frame to the rep-end frame inclusive, and
// produces exactly one immutable summary per completed rep.
package aggregate

import (
	"math"

	"github.com/formsense/repkit/internal/domain/model"
)

// Aggregator tracks one in-flight rep for one exercise instance. Gated
// frames never reach it, so everything pushed in counts toward the summary.
type Aggregator struct {
	keys   []string
	active bool

	repIndex int
	start    model.MetricFrame
	aggs     map[string]model.MetricAgg
}

// New creates an Aggregator for the exercise's required-metric set.
func New(keys []string) *Aggregator {
	return &Aggregator{keys: keys}
}

// Active reports whether a rep is currently being accumulated.
func (a *Aggregator) Active() bool {
	return a.active
}

// Begin seeds the aggregate from the rep-start frame.
func (a *Aggregator) Begin(repIndex int, frame model.MetricFrame) {
	a.active = true
	a.repIndex = repIndex
	a.start = frame
	a.aggs = make(map[string]model.MetricAgg, len(a.keys))
	for _, key := range a.keys {
		v := frame.Values[key]
		a.aggs[key] = model.MetricAgg{Start: v, Min: v, Max: v, End: v}
	}
}

// Update folds one mid-rep frame into the running extremes. NaN values are
// skipped; a metric that was NaN at rep start is seeded by its first finite
// value instead.
func (a *Aggregator) Update(frame model.MetricFrame) {
	if !a.active {
		return
	}
	for _, key := range a.keys {
		v, ok := frame.Values[key]
		if !ok || math.IsNaN(v) {
			continue
		}
		agg := a.aggs[key]
		if math.IsNaN(agg.Min) || v < agg.Min {
			agg.Min = v
		}
		if math.IsNaN(agg.Max) || v > agg.Max {
			agg.Max = v
		}
		if math.IsNaN(agg.Start) {
			agg.Start = v
		}
		agg.End = v
		a.aggs[key] = agg
	}
}

// Finish folds in the rep-end frame, snapshots end values, and returns the
// completed summary. The aggregator is idle afterwards.
func (a *Aggregator) Finish(frame model.MetricFrame) *model.RepSummary {
	if !a.active {
		return nil
	}
	a.Update(frame)

	sum := &model.RepSummary{
		RepIndex: a.repIndex,
		StartTS:  a.start.TS,
		EndTS:    frame.TS,
		Duration: frame.TS.Sub(a.start.TS),
		Metrics:  a.aggs,
	}
	a.active = false
	a.aggs = nil
	return sum
}

// Abort discards the in-flight rep without producing a summary.
func (a *Aggregator) Abort() {
	a.active = false
	a.aggs = nil
}
