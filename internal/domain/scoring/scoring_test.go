package scoring_test

import (
	"testing"
	"time"

	"github.com/formsense/repkit/internal/domain/exercise"
	"github.com/formsense/repkit/internal/domain/model"
	scoring "github.com/formsense/repkit/internal/domain/scoring"
	"github.com/formsense/repkit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func summaryWith(aggs map[string]model.MetricAgg) *model.RepSummary {
	return &model.RepSummary{
		RepIndex: 1,
		Duration: 1500 * time.Millisecond,
		Metrics:  aggs,
	}
}

func baseConfig() *exercise.Config {
	return &exercise.Config{
		ID:      "pullup",
		Version: 1,
		Weights: exercise.Weights{ROM: 0.6, Depth: 0.4, Faults: 1},
	}
}

func TestEngine_ROMScore(t *testing.T) {
	Convey("Given a config with one ROM metric targeting [60,170]", t, func() {
		cfg := baseConfig()
		cfg.ROM = []exercise.ROMMetric{
			{Keys: []string{"elbow_angle"}, TargetMin: 60, TargetMax: 170, Weight: 1},
		}
		engine := scoring.NewEngine(cfg)

		Convey("When the achieved band equals the target band exactly", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle": {Start: 170, Min: 60, Max: 170, End: 170},
			}))

			Convey("Then ROM coverage is exactly 100", func() {
				So(breakdown.ROM, ShouldEqual, 100)
			})
		})

		Convey("When the achieved band covers half the target band", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle": {Start: 170, Min: 115, Max: 170, End: 170},
			}))

			Convey("Then ROM coverage is 50", func() {
				So(breakdown.ROM, ShouldAlmostEqual, 50, 1e-9)
			})
		})

		Convey("When the metric never produced a finite value", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{}))

			Convey("Then coverage is zero, not an error", func() {
				So(breakdown.ROM, ShouldEqual, 0)
			})
		})
	})

	Convey("Given a two-sided ROM metric", t, func() {
		cfg := baseConfig()
		cfg.ROM = []exercise.ROMMetric{
			{Keys: []string{"elbow_angle_left", "elbow_angle_right"}, TargetMin: 60, TargetMax: 170, Weight: 1},
		}
		engine := scoring.NewEngine(cfg)

		Convey("When one side covers the band and the other covers half", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle_left":  {Min: 60, Max: 170},
				"elbow_angle_right": {Min: 115, Max: 170},
			}))

			Convey("Then the asymmetric side dominates via the minimum", func() {
				So(breakdown.ROM, ShouldAlmostEqual, 50, 1e-9)
			})
		})
	})

	Convey("Given no configured ROM metrics", t, func() {
		engine := scoring.NewEngine(baseConfig())

		Convey("Then the ROM component is a neutral 100", func() {
			breakdown := engine.ScoreRep(summaryWith(nil))
			So(breakdown.ROM, ShouldEqual, 100)
		})
	})
}

func TestEngine_DepthScore(t *testing.T) {
	Convey("Given a depth metric wanting a minimum near 55 with tolerance 10", t, func() {
		cfg := baseConfig()
		cfg.Depth = []exercise.DepthMetric{
			{Keys: []string{"elbow_angle"}, Extreme: exercise.ExtremeMin, Optimal: 55, Tolerance: 10, PenaltyPerUnit: 2, Weight: 1},
		}
		engine := scoring.NewEngine(cfg)

		Convey("When the rep bottoms out inside the tolerance", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle": {Min: 60, Max: 170},
			}))
			So(breakdown.Depth, ShouldEqual, 100)
		})

		Convey("When the rep misses depth by 15 units past tolerance", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle": {Min: 80, Max: 170},
			}))

			Convey("Then the score drops by excess times penalty-per-unit", func() {
				So(breakdown.Depth, ShouldAlmostEqual, 100-15*2, 1e-9)
			})
		})

		Convey("When the miss is extreme", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle": {Min: 160, Max: 170},
			}))

			Convey("Then the depth score clamps at zero", func() {
				So(breakdown.Depth, ShouldEqual, 0)
			})
		})
	})
}

func TestEngine_Faults(t *testing.T) {
	Convey("Given fault definitions with penalties", t, func() {
		cfg := baseConfig()
		cfg.Weights = exercise.Weights{ROM: 1, Depth: 0, Faults: 1}
		cfg.Faults = []exercise.FaultDef{
			{
				ID:      "short_rep",
				When:    exercise.RepCondition{Fn: func(sum *model.RepSummary) bool { return sum.Duration < 2*time.Second }},
				Penalty: 15,
				Message: "rep too fast",
			},
			{
				ID:      "broken_predicate",
				When:    exercise.RepCondition{Fn: func(*model.RepSummary) bool { panic("bad lookup") }},
				Penalty: 50,
			},
		}
		engine := scoring.NewEngine(cfg)

		Convey("When a rep triggers one fault and one predicate panics", func() {
			breakdown := engine.ScoreRep(summaryWith(nil))

			Convey("Then only the healthy fault is detected", func() {
				So(breakdown.Faults, ShouldHaveLength, 1)
				So(breakdown.Faults[0].ID, ShouldEqual, "short_rep")
				So(breakdown.FaultPenalty, ShouldEqual, 15)
			})

			Convey("And the final score stays within [0,100]", func() {
				So(breakdown.Score, ShouldBeBetweenOrEqual, 0, 100)
			})
		})
	})

	Convey("Given penalties that sum past 100", t, func() {
		always := exercise.RepCondition{Fn: func(*model.RepSummary) bool { return true }}
		cfg := baseConfig()
		cfg.Faults = []exercise.FaultDef{
			{ID: "a", When: always, Penalty: 70},
			{ID: "b", When: always, Penalty: 80},
		}
		engine := scoring.NewEngine(cfg)

		Convey("Then the total penalty caps at 100", func() {
			breakdown := engine.ScoreRep(summaryWith(nil))
			So(breakdown.FaultPenalty, ShouldEqual, 100)
			So(breakdown.Score, ShouldBeBetweenOrEqual, 0, 100)
		})
	})
}

func TestEngine_Combination(t *testing.T) {
	Convey("Given weights ROM 0.6 / depth 0.4 / faults 1", t, func() {
		cfg := baseConfig()
		cfg.ROM = []exercise.ROMMetric{
			{Keys: []string{"elbow_angle"}, TargetMin: 60, TargetMax: 170, Weight: 1},
		}
		cfg.Faults = []exercise.FaultDef{
			{
				ID:      "kip",
				When:    exercise.RepCondition{Fn: func(*model.RepSummary) bool { return true }},
				Penalty: 10,
			},
		}
		engine := scoring.NewEngine(cfg)

		Convey("When a full-coverage rep picks up one 10-point fault", func() {
			breakdown := engine.ScoreRep(summaryWith(map[string]model.MetricAgg{
				"elbow_angle": {Min: 60, Max: 170},
			}))

			Convey("Then the final score is the rounded weighted blend", func() {
				// 100*0.6 + 100*0.4 - 10*1 = 90
				So(breakdown.Score, ShouldEqual, 90)
			})

			Convey("And every component is reported individually", func() {
				So(breakdown.ROM, ShouldEqual, 100)
				So(breakdown.Depth, ShouldEqual, 100)
				So(breakdown.FaultPenalty, ShouldEqual, 10)
			})
		})
	})
}
