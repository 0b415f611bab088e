package simulate_test

import (
	"testing"
	"time"

	"github.com/formsense/repkit/internal/domain/kinematics"
	"github.com/formsense/repkit/internal/domain/model"
	simulate "github.com/formsense/repkit/internal/simulate"
	. "github.com/smartystreets/goconvey/convey"
)

func elbowAngle(frame model.PoseFrame) float64 {
	ex := kinematics.NewExtractor([]kinematics.Spec{{
		Key:    "elbow_angle",
		Kind:   kinematics.KindAngle,
		Joints: []string{simulate.JointShoulder, simulate.JointElbow, simulate.JointWrist},
	}})
	joints := make(model.JointMap, len(frame.Joints))
	for name, pos := range frame.Joints {
		joints[name] = model.JointSample{Pos: pos, Tracked: true, Confidence: frame.Confidence[name]}
	}
	return ex.Extract(frame.TS, frame.Dim, joints).Values["elbow_angle"]
}

func TestGenerator(t *testing.T) {
	Convey("Given a two-rep generator at 30 fps", t, func() {
		g := simulate.NewGenerator(
			simulate.WithFPS(30),
			simulate.WithReps(2),
			simulate.WithRepPeriod(2*time.Second),
		)
		frames := g.Frames(time.Now())

		Convey("Then the stream covers both reps at the frame rate", func() {
			So(frames, ShouldHaveLength, 120)
			So(frames[1].TS.Sub(frames[0].TS), ShouldEqual, time.Second/30)
		})

		Convey("And the elbow angle starts at a straight-arm hang", func() {
			So(elbowAngle(frames[0]), ShouldAlmostEqual, 170, 0.5)
		})

		Convey("And the elbow angle bottoms out mid-rep", func() {
			// Half a period into the first rep
			So(elbowAngle(frames[30]), ShouldAlmostEqual, 50, 0.5)
		})

		Convey("And every frame carries full-confidence 2D joints", func() {
			for _, f := range frames {
				So(f.Dim, ShouldEqual, model.Pose2D)
				So(f.Joints, ShouldHaveLength, 3)
			}
		})
	})

	Convey("Given a generator with occlusion", t, func() {
		g := simulate.NewGenerator(
			simulate.WithFPS(10),
			simulate.WithReps(1),
			simulate.WithRepPeriod(time.Second),
			simulate.WithOcclusion(5),
		)
		frames := g.Frames(time.Now())

		Convey("Then every fifth frame is missing the wrist", func() {
			_, ok := frames[5].Joints[simulate.JointWrist]
			So(ok, ShouldBeFalse)
			_, ok = frames[4].Joints[simulate.JointWrist]
			So(ok, ShouldBeTrue)
		})
	})
}

func TestPullUp(t *testing.T) {
	Convey("Given the demo pull-up definition", t, func() {
		cfg, err := simulate.PullUp()

		Convey("Then it validates and resolves cleanly", func() {
			So(err, ShouldBeNil)
			So(cfg.ID, ShouldEqual, "pullup_demo")
			So(cfg.StartWhen.Fn, ShouldNotBeNil)
			So(cfg.EndWhen.Fn, ShouldNotBeNil)
		})

		Convey("And defaults were applied", func() {
			So(err, ShouldBeNil)
			So(cfg.Weights.ROM, ShouldEqual, 0.5)
			So(cfg.Buffers.WindowSamples, ShouldEqual, 120)
		})
	})
}
