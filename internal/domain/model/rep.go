package model

import "time"

// MetricAgg captures one metric's trajectory over a single rep.
type MetricAgg struct {
	Start float64
	Min   float64
	Max   float64
	End   float64
}

// RepSummary is the immutable aggregate of one completed repetition,
// covering the frames from rep-start to rep-end inclusive.
type RepSummary struct {
	RepIndex int
	StartTS  time.Time
	EndTS    time.Time
	Duration time.Duration
	Metrics  map[string]MetricAgg
}

// Agg returns the aggregate for a metric key and whether it was recorded.
func (s *RepSummary) Agg(key string) (MetricAgg, bool) {
	a, ok := s.Metrics[key]
	return a, ok
}

// Range returns max-min for a metric key, or 0 if the key is unknown.
func (s *RepSummary) Range(key string) float64 {
	a, ok := s.Metrics[key]
	if !ok {
		return 0
	}
	return a.Max - a.Min
}

// DetectedFault is one fault found by the scoring engine during a rep.
type DetectedFault struct {
	ID      string
	Penalty float64
	Message string
}

// ScoreBreakdown reports the weighted component scores and the combined
// quality index for one rep. All values lie in [0,100].
type ScoreBreakdown struct {
	ROM          float64
	Depth        float64
	FaultPenalty float64
	Score        float64
	Faults       []DetectedFault
}
