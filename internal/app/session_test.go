package session_test

import (
	"context"
	"testing"
	"time"

	session "github.com/formsense/repkit/internal/app"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/internal/simulate"
	"github.com/formsense/repkit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a session for the demo pull-up", t, func() {
		cfg, err := simulate.PullUp()
		So(err, ShouldBeNil)
		ctx := context.Background()
		s := session.New(cfg)

		Convey("When processing a frame before starting", func() {
			err := s.ProcessFrame(ctx, model.PoseFrame{TS: time.Now(), Dim: model.Pose2D})

			Convey("Then it reports not started", func() {
				So(err, ShouldEqual, session.ErrNotStarted)
			})
		})

		Convey("When starting twice", func() {
			So(s.Start(ctx), ShouldBeNil)
			defer s.Close(ctx)

			Convey("Then the second start is rejected", func() {
				So(s.Start(ctx), ShouldEqual, session.ErrAlreadyStarted)
			})
		})

		Convey("When closing an unstarted session", func() {
			Convey("Then it is a no-op", func() {
				So(s.Close(ctx), ShouldBeNil)
			})
		})

		Convey("When started", func() {
			So(s.Start(ctx), ShouldBeNil)
			defer s.Close(ctx)

			Convey("Then it has a unique id and the initial phase", func() {
				So(s.ID(), ShouldNotBeEmpty)
				So(s.Phase(), ShouldEqual, "hang")
				So(s.RepCount(), ShouldEqual, 0)
			})
		})
	})
}

func TestSessionEndToEnd(t *testing.T) {
	Convey("Given a three-rep synthetic pull-up stream", t, func() {
		cfg, err := simulate.PullUp()
		So(err, ShouldBeNil)

		gen := simulate.NewGenerator(
			simulate.WithFPS(30),
			simulate.WithReps(3),
			simulate.WithRepPeriod(3*time.Second),
		)
		frames := gen.Frames(time.Now())

		ctx := context.Background()
		s := session.New(cfg)
		So(s.Start(ctx), ShouldBeNil)

		Convey("When every frame runs through the pipeline", func() {
			for _, frame := range frames {
				So(s.ProcessFrame(ctx, frame), ShouldBeNil)
			}
			So(s.Close(ctx), ShouldBeNil)

			var starts, completes, rejected, cues int
			var scores []float64
			var faults []model.DetectedFault
			for ev := range s.Events() {
				switch ev.Kind {
				case model.EventRepStart:
					starts++
				case model.EventRepComplete:
					completes++
					scores = append(scores, ev.Score.Score)
					faults = append(faults, ev.Score.Faults...)
				case model.EventRepRejected:
					rejected++
				case model.EventCue:
					cues++
				}
			}

			Convey("Then every rep starts, completes, and none are rejected", func() {
				So(starts, ShouldEqual, 3)
				So(completes, ShouldEqual, 3)
				So(rejected, ShouldEqual, 0)
			})

			Convey("And every rep scores like a clean pull-up", func() {
				So(scores, ShouldHaveLength, 3)
				for _, score := range scores {
					So(score, ShouldBeGreaterThan, 80)
					So(score, ShouldBeLessThanOrEqualTo, 100)
				}
			})

			Convey("And no rep carries a detected fault", func() {
				So(faults, ShouldBeEmpty)
			})

			Convey("And coaching cues fired along the way", func() {
				So(cues, ShouldBeGreaterThanOrEqualTo, 1)
			})

			Convey("And the machine finished back at the hang", func() {
				So(s.Phase(), ShouldEqual, "hang")
				So(s.RepCount(), ShouldEqual, 3)
			})

			Convey("And the history store holds all three reps", func() {
				So(s.History().Count(ctx), ShouldEqual, 3)

				stats, err := s.Stats(ctx)
				So(err, ShouldBeNil)
				So(stats.Reps, ShouldEqual, 3)
				So(stats.MeanScore, ShouldBeGreaterThan, 80)

				best, err := s.History().Best(ctx)
				So(err, ShouldBeNil)
				So(best.Rank, ShouldEqual, 1)
			})
		})
	})
}

func TestSessionOcclusionTolerance(t *testing.T) {
	Convey("Given a stream with a briefly occluded wrist", t, func() {
		cfg, err := simulate.PullUp()
		So(err, ShouldBeNil)

		gen := simulate.NewGenerator(
			simulate.WithFPS(30),
			simulate.WithReps(2),
			simulate.WithRepPeriod(3*time.Second),
			simulate.WithOcclusion(20),
		)
		frames := gen.Frames(time.Now())

		ctx := context.Background()
		s := session.New(cfg)
		So(s.Start(ctx), ShouldBeNil)

		Convey("When every frame runs through the pipeline", func() {
			for _, frame := range frames {
				So(s.ProcessFrame(ctx, frame), ShouldBeNil)
			}
			So(s.Close(ctx), ShouldBeNil)

			var completes int
			for ev := range s.Events() {
				if ev.Kind == model.EventRepComplete {
					completes++
				}
			}

			Convey("Then single-frame occlusions do not break segmentation", func() {
				So(completes, ShouldEqual, 2)
			})
		})
	})
}
