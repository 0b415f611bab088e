// Package scoring converts an aggregated rep window into ROM and depth
// sub-scores, detected faults, and a combined 0-100 quality index, driven
// entirely by the exercise's declarative configuration. There are no
// per-exercise code paths here.
package scoring

import (
	"context"
	"math"

	"github.com/formsense/repkit/internal/domain/exercise"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/pkg/logger"
	"github.com/formsense/repkit/pkg/metrics"
)

// Scoring constants.
const (
	maxScore   = 100.0
	bandEps    = 1e-9
	maxPenalty = 100.0
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic logger used for predicate failures.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Engine scores completed reps for one exercise configuration. It keeps no
// state between reps.
type Engine struct {
	cfg *exercise.Config
	log logger.Logger
}

// NewEngine creates an Engine for a validated configuration.
func NewEngine(cfg *exercise.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg: cfg,
		log: logger.Get().Named("scoring"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ScoreRep produces the full score breakdown for one rep summary.
func (e *Engine) ScoreRep(sum *model.RepSummary) *model.ScoreBreakdown {
	rom := e.romScore(sum)
	depth := e.depthScore(sum)
	faults, penalty := e.detectFaults(sum)

	w := e.cfg.Weights
	raw := rom*w.ROM + depth*w.Depth - penalty*w.Faults
	score := clampScore(math.Round(raw))

	metrics.ObserveRepScore(score)
	return &model.ScoreBreakdown{
		ROM:          rom,
		Depth:        depth,
		FaultPenalty: penalty,
		Score:        score,
		Faults:       faults,
	}
}

// romScore is the weighted mean of per-metric target-band coverage, with
// sides aggregated by minimum to penalize asymmetry. No configured ROM
// metrics means a neutral 100.
func (e *Engine) romScore(sum *model.RepSummary) float64 {
	if len(e.cfg.ROM) == 0 {
		return maxScore
	}
	var total, weights float64
	for _, rm := range e.cfg.ROM {
		side := maxScore
		for _, key := range rm.Keys {
			side = math.Min(side, coverage(sum, key, rm.TargetMin, rm.TargetMax))
		}
		total += side * rm.Weight
		weights += rm.Weight
	}
	if weights <= 0 {
		return maxScore
	}
	return total / weights
}

// coverage measures how much of the target band [targetMin, targetMax] the
// achieved band covered, as a 0-100 percentage.
func coverage(sum *model.RepSummary, key string, targetMin, targetMax float64) float64 {
	agg, ok := sum.Agg(key)
	if !ok || math.IsNaN(agg.Min) || math.IsNaN(agg.Max) {
		return 0
	}
	overlap := math.Min(agg.Max, targetMax) - math.Max(agg.Min, targetMin)
	span := math.Max(bandEps, targetMax-targetMin)
	return clamp01(overlap/span) * maxScore
}

// depthScore is the weighted mean of per-metric extreme-vs-optimal scores,
// sides aggregated by minimum. No configured depth metrics means 100.
func (e *Engine) depthScore(sum *model.RepSummary) float64 {
	if len(e.cfg.Depth) == 0 {
		return maxScore
	}
	var total, weights float64
	for _, dm := range e.cfg.Depth {
		side := maxScore
		for _, key := range dm.Keys {
			side = math.Min(side, depthFor(sum, key, dm))
		}
		total += side * dm.Weight
		weights += dm.Weight
	}
	if weights <= 0 {
		return maxScore
	}
	return total / weights
}

func depthFor(sum *model.RepSummary, key string, dm exercise.DepthMetric) float64 {
	agg, ok := sum.Agg(key)
	if !ok {
		return 0
	}
	achieved := agg.Min
	if dm.Extreme == exercise.ExtremeMax {
		achieved = agg.Max
	}
	if math.IsNaN(achieved) {
		return 0
	}
	excess := math.Abs(achieved-dm.Optimal) - dm.Tolerance
	if excess <= 0 {
		return maxScore
	}
	return clampScore(maxScore - excess*dm.PenaltyPerUnit)
}

// detectFaults evaluates every fault condition against the summary. The
// total penalty is capped at 100; a panicking predicate counts as not
// detected and is logged, never propagated.
func (e *Engine) detectFaults(sum *model.RepSummary) ([]model.DetectedFault, float64) {
	faults := make([]model.DetectedFault, 0, len(e.cfg.Faults))
	var penalty float64
	for _, fd := range e.cfg.Faults {
		hit, err := fd.When.Eval(sum)
		if err != nil {
			metrics.RecordPredicatePanic()
			e.log.Warn(context.Background(), "fault predicate failed; treating as not detected",
				logger.String("fault", fd.ID),
				logger.Error(err),
			)
			continue
		}
		if !hit {
			continue
		}
		faults = append(faults, model.DetectedFault{
			ID:      fd.ID,
			Penalty: fd.Penalty,
			Message: fd.Message,
		})
		penalty += fd.Penalty
		metrics.RecordFaultDetected()
	}
	if penalty > maxPenalty {
		penalty = maxPenalty
	}
	return faults, penalty
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(maxScore, v))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
