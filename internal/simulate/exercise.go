package simulate

import (
	"github.com/formsense/repkit/internal/domain/exercise"
	"github.com/formsense/repkit/internal/domain/kinematics"
	"github.com/formsense/repkit/internal/domain/model"
)

// Metric keys produced by the demo pull-up definition.
const (
	MetricElbowAngle    = "elbow_angle"
	MetricElbowVelocity = "elbow_velocity"
)

// PullUpRegistry returns a registry with every named predicate the demo
// pull-up definition references.
func PullUpRegistry() *exercise.Registry {
	return exercise.NewRegistry().
		RegisterFrame("arms_bent", func(s *exercise.Snapshot) bool {
			return s.Value(MetricElbowAngle) < 150
		}).
		RegisterFrame("back_at_hang", func(s *exercise.Snapshot) bool {
			return s.RepActive && s.Phase == "hang" && s.Value(MetricElbowAngle) > 160
		}).
		RegisterFrame("below_full_hang", func(s *exercise.Snapshot) bool {
			return s.Value(MetricElbowAngle) < 165
		}).
		RegisterRep("rom_too_small", func(sum *model.RepSummary) bool {
			return sum.Range(MetricElbowAngle) < 40
		}).
		RegisterRep("shallow_pull", func(sum *model.RepSummary) bool {
			agg, ok := sum.Agg(MetricElbowAngle)
			return ok && agg.Min > 80
		}).
		RegisterRep("incomplete_lockout", func(sum *model.RepSummary) bool {
			agg, ok := sum.Agg(MetricElbowAngle)
			return ok && agg.End < 150
		})
}

// PullUp returns a validated demo pull-up definition matched to the frames
// the Generator produces.
func PullUp() (*exercise.Config, error) {
	cfg := &exercise.Config{
		ID:           "pullup_demo",
		Name:         "Pull-up (demo)",
		Version:      1,
		Phases:       []string{"hang", "pull", "top", "lower"},
		InitialPhase: "hang",
		Transitions: []exercise.Transition{
			{
				From: "hang", To: "pull", MinDwellMS: 400,
				Hysteresis: &exercise.Hysteresis{Metric: MetricElbowAngle, Below: true, Enter: 120, Exit: 150},
				Direction:  &exercise.DirectionGate{Metric: MetricElbowVelocity, Sign: -1},
			},
			{
				From: "pull", To: "top", MinDwellMS: 400,
				Hysteresis: &exercise.Hysteresis{Metric: MetricElbowAngle, Below: true, Enter: 70, Exit: 100},
			},
			{
				From: "top", To: "lower", MinDwellMS: 400,
				Hysteresis: &exercise.Hysteresis{Metric: MetricElbowAngle, Below: false, Enter: 80, Exit: 60},
				Direction:  &exercise.DirectionGate{Metric: MetricElbowVelocity, Sign: 1},
			},
			{
				From: "lower", To: "hang", MinDwellMS: 400,
				Hysteresis: &exercise.Hysteresis{Metric: MetricElbowAngle, Below: false, Enter: 160, Exit: 120},
			},
		},
		Metrics: []kinematics.Spec{
			{
				Key:    MetricElbowAngle,
				Kind:   kinematics.KindAngle,
				Joints: []string{JointShoulder, JointElbow, JointWrist},
				Alpha:  0.5,
			},
			{
				Key:    MetricElbowVelocity,
				Kind:   kinematics.KindVelocity,
				Source: MetricElbowAngle,
			},
		},
		RequiredMetrics: []string{MetricElbowAngle, MetricElbowVelocity},
		ConfidenceGate:  0.5,
		StartWhen:       exercise.Condition{Ref: "arms_bent"},
		EndWhen:         exercise.Condition{Ref: "back_at_hang"},
		Rejections: []exercise.RejectRule{
			{Reason: "rom_too_small", When: exercise.RepCondition{Ref: "rom_too_small"}},
		},
		ROM: []exercise.ROMMetric{
			{Keys: []string{MetricElbowAngle}, TargetMin: 60, TargetMax: 170, Weight: 1},
		},
		Depth: []exercise.DepthMetric{
			{Keys: []string{MetricElbowAngle}, Extreme: exercise.ExtremeMin, Optimal: 55, Tolerance: 15, PenaltyPerUnit: 2, Weight: 1},
		},
		Faults: []exercise.FaultDef{
			{ID: "shallow_pull", When: exercise.RepCondition{Ref: "shallow_pull"}, Penalty: 20, Message: "pull all the way up"},
			{ID: "incomplete_lockout", When: exercise.RepCondition{Ref: "incomplete_lockout"}, Penalty: 10, Message: "finish with straight arms"},
		},
		Cues: []exercise.CueDef{
			{
				ID:         "full_hang",
				Phases:     []string{"hang"},
				When:       exercise.Condition{Ref: "below_full_hang"},
				DebounceMS: 150,
				CooldownMS: 2000,
				Severity:   model.SeverityInfo,
				Text:       "straighten your arms between reps",
			},
		},
	}

	return exercise.Finalize(cfg, PullUpRegistry())
}
