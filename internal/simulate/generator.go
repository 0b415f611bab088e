// Package simulate produces synthetic pose streams for demos and end-to-end
// tests. The generator traces an idealized pull-up: the elbow angle swings
// from a straight-arm hang down to a chin-over-bar bend and back, once per
// rep, at a fixed frame rate.
package simulate

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/formsense/repkit/internal/domain/model"
)

// Joint names used by the generated frames and the demo exercise.
const (
	JointShoulder = "shoulder"
	JointElbow    = "elbow"
	JointWrist    = "wrist"
)

// Default generator configuration constants.
const (
	defaultFPS       = 30
	defaultReps      = 3
	defaultRepPeriod = 3 * time.Second

	hangAngle   = 170.0 // degrees, arms straight
	topAngle    = 50.0  // degrees, chin over bar
	upperArmLen = 0.30
	forearmLen  = 0.28

	randomFloatDivisor = 1000000
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithFPS sets the frame rate of the generated stream.
func WithFPS(fps int) Option {
	return func(g *Generator) {
		if fps > 0 {
			g.fps = fps
		}
	}
}

// WithReps sets how many full reps the stream traces.
func WithReps(reps int) Option {
	return func(g *Generator) {
		if reps > 0 {
			g.reps = reps
		}
	}
}

// WithRepPeriod sets the duration of one full rep cycle.
func WithRepPeriod(period time.Duration) Option {
	return func(g *Generator) {
		if period > 0 {
			g.period = period
		}
	}
}

// WithJitter adds up to amp degrees of random noise to the elbow angle.
func WithJitter(amp float64) Option {
	return func(g *Generator) {
		if amp > 0 {
			g.jitter = amp
		}
	}
}

// WithOcclusion drops the wrist joint from every nth frame to exercise the
// occlusion-hold path. Zero disables occlusion.
func WithOcclusion(everyN int) Option {
	return func(g *Generator) {
		if everyN > 0 {
			g.occludeEvery = everyN
		}
	}
}

// Generator produces a deterministic pull-up pose stream.
type Generator struct {
	fps          int
	reps         int
	period       time.Duration
	jitter       float64
	occludeEvery int
}

// NewGenerator creates a Generator with configuration options.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		fps:    defaultFPS,
		reps:   defaultReps,
		period: defaultRepPeriod,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Frames generates the full pose stream starting at start.
func (g *Generator) Frames(start time.Time) []model.PoseFrame {
	frameInterval := time.Second / time.Duration(g.fps)
	total := int(g.period/frameInterval) * g.reps

	frames := make([]model.PoseFrame, 0, total)
	for i := 0; i < total; i++ {
		ts := start.Add(time.Duration(i) * frameInterval)
		t := float64(i) * frameInterval.Seconds()
		angle := g.elbowAngleAt(t)
		frames = append(frames, g.frameAt(ts, angle, i))
	}
	return frames
}

// elbowAngleAt traces one cosine swing from hang to top and back per period.
func (g *Generator) elbowAngleAt(t float64) float64 {
	mid := (hangAngle + topAngle) / 2
	amp := (hangAngle - topAngle) / 2
	angle := mid + amp*math.Cos(2*math.Pi*t/g.period.Seconds())
	if g.jitter > 0 {
		angle += (getRandomFloat()*2 - 1) * g.jitter
	}
	return angle
}

// frameAt places shoulder, elbow, and wrist so the elbow angle matches. The
// upper arm hangs straight down from the shoulder; the forearm folds back up
// by the given angle.
func (g *Generator) frameAt(ts time.Time, angleDeg float64, index int) model.PoseFrame {
	shoulder := model.Vec{X: 0, Y: 1.5}
	elbow := model.Vec{X: 0, Y: shoulder.Y - upperArmLen}

	// Direction from elbow back to shoulder is straight up (90 degrees).
	// The forearm leaves the elbow at 90 - angle so the interior angle at
	// the elbow equals angleDeg.
	rad := (90 - angleDeg) * math.Pi / 180
	wrist := model.Vec{
		X: elbow.X + forearmLen*math.Cos(rad),
		Y: elbow.Y + forearmLen*math.Sin(rad),
	}

	joints := map[string]model.Vec{
		JointShoulder: shoulder,
		JointElbow:    elbow,
		JointWrist:    wrist,
	}
	confidence := map[string]float64{
		JointShoulder: 1,
		JointElbow:    1,
		JointWrist:    1,
	}

	if g.occludeEvery > 0 && index > 0 && index%g.occludeEvery == 0 {
		delete(joints, JointWrist)
		delete(confidence, JointWrist)
	}

	return model.PoseFrame{
		TS:         ts,
		Dim:        model.Pose2D,
		Joints:     joints,
		Confidence: confidence,
	}
}
