package simulate_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	simulate "github.com/formsense/repkit/internal/simulate"
	"github.com/formsense/repkit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

func TestFrameStream(t *testing.T) {
	Convey("Given a generated frame set", t, func() {
		g := simulate.NewGenerator(
			simulate.WithFPS(10),
			simulate.WithReps(1),
			simulate.WithRepPeriod(time.Second),
		)
		frames := g.Frames(time.Unix(1700000000, 0).UTC())

		Convey("When written and read back as JSON Lines", func() {
			var buf bytes.Buffer
			So(simulate.WriteFrames(&buf, frames), ShouldBeNil)

			decoded, err := simulate.ReadFrames(&buf)

			Convey("Then the stream round-trips", func() {
				So(err, ShouldBeNil)
				So(decoded, ShouldHaveLength, len(frames))
				So(decoded[0].TS.Equal(frames[0].TS), ShouldBeTrue)
				So(decoded[0].Dim, ShouldEqual, frames[0].Dim)
				So(decoded[0].Joints[simulate.JointElbow], ShouldResemble, frames[0].Joints[simulate.JointElbow])
				So(decoded[0].Confidence[simulate.JointWrist], ShouldEqual, frames[0].Confidence[simulate.JointWrist])
			})
		})
	})

	Convey("Given a malformed stream", t, func() {
		in := strings.NewReader("{\"ts\":\"2023-01-01T00:00:00Z\",\"dim\":2,\"joints\":{},\"confidence\":{}}\nnot json\n")

		frames, err := simulate.ReadFrames(in)

		Convey("Then decoding reports the offending line", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, simulate.ErrDecodeStream), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "line 2")
			So(frames, ShouldBeNil)
		})
	})

	Convey("Given a stream with blank lines", t, func() {
		in := strings.NewReader("\n{\"ts\":\"2023-01-01T00:00:00Z\",\"dim\":2,\"joints\":{},\"confidence\":{}}\n\n")

		frames, err := simulate.ReadFrames(in)

		Convey("Then blank lines are skipped", func() {
			So(err, ShouldBeNil)
			So(frames, ShouldHaveLength, 1)
		})
	})
}

func TestRunVerify(t *testing.T) {
	Convey("Given a clean two-rep synthetic set", t, func() {
		cfg := &simulate.RunConfig{
			FPS:       30,
			Reps:      2,
			RepPeriod: 3 * time.Second,
			Verify:    true,
		}

		Convey("Then verification passes", func() {
			So(simulate.Run(context.Background(), cfg), ShouldBeNil)
		})
	})
}
