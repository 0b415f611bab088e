// Package pose conditions raw per-frame joint data before metric extraction.
//
// The conditioner is the first pipeline stage: it clamps per-frame outlier
// displacement, applies exponential smoothing, and rides out short occlusions
// by holding the last good position with decaying confidence. Bad numeric
// input never raises an error; it degrades the joint to "untracked".
package pose

import (
	"math"

	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/pkg/metrics"
)

// Default conditioning parameters.
const (
	defaultMaxDelta      = 80.0 // position units per frame
	defaultAlpha         = 0.5
	defaultLowConfidence = 0.3
	defaultHoldFrames    = 5
	defaultDecayFactor   = 0.8
)

// Option applies a configuration option to the Conditioner.
type Option func(*Conditioner)

// WithMaxDelta caps the per-frame displacement of any joint.
func WithMaxDelta(maxDelta float64) Option {
	return func(c *Conditioner) {
		if maxDelta > 0 {
			c.maxDelta = maxDelta
		}
	}
}

// WithSmoothing sets the EMA factor alpha in [0,1]; higher means less smoothing.
func WithSmoothing(alpha float64) Option {
	return func(c *Conditioner) {
		if alpha >= 0 && alpha <= 1 {
			c.alpha = alpha
		}
	}
}

// WithOcclusionHold configures the hold-with-decay behavior: joints whose
// confidence drops below threshold keep their last good position for up to
// holdFrames consecutive frames, with confidence multiplied by decay each
// frame, and are dropped afterwards.
func WithOcclusionHold(threshold float64, holdFrames int, decay float64) Option {
	return func(c *Conditioner) {
		if threshold >= 0 && threshold <= 1 {
			c.lowConfidence = threshold
		}
		if holdFrames >= 0 {
			c.holdFrames = holdFrames
		}
		if decay > 0 && decay <= 1 {
			c.decay = decay
		}
	}
}

// Conditioner smooths and gap-fills one exercise instance's joint stream.
// It owns the previous conditioned map; it is not safe for concurrent use.
type Conditioner struct {
	maxDelta      float64
	alpha         float64
	lowConfidence float64
	holdFrames    int
	decay         float64

	prev    model.JointMap
	missing map[string]int // consecutive held frames per joint
}

// New creates a Conditioner with default parameters.
func New(opts ...Option) *Conditioner {
	c := &Conditioner{
		maxDelta:      defaultMaxDelta,
		alpha:         defaultAlpha,
		lowConfidence: defaultLowConfidence,
		holdFrames:    defaultHoldFrames,
		decay:         defaultDecayFactor,
		missing:       make(map[string]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset discards all held state, as when the exercise instance restarts.
func (c *Conditioner) Reset() {
	c.prev = nil
	c.missing = make(map[string]int)
}

// Condition ingests one raw frame and returns the conditioned joint map.
// Every key present in the previous output stays present until it has been
// missing or low-confidence for more than the configured hold-frame count.
func (c *Conditioner) Condition(frame model.PoseFrame) model.JointMap {
	out := make(model.JointMap, len(frame.Joints)+len(c.prev))

	for name := range frame.Joints {
		c.conditionJoint(name, frame, out)
	}

	// Joints absent from the incoming frame are held from the previous map.
	for name, prev := range c.prev {
		if _, seen := out[name]; seen {
			continue
		}
		if _, incoming := frame.Joints[name]; incoming {
			continue
		}
		c.hold(name, prev, false, out)
	}

	c.prev = out
	return out
}

func (c *Conditioner) conditionJoint(name string, frame model.PoseFrame, out model.JointMap) {
	raw := frame.Joints[name]
	conf := clamp01(frame.Confidence[name])
	prev, hasPrev := c.prev[name]

	if !finiteVec(raw) {
		// Invalid coordinates degrade to untracked; previous position is
		// held (and eventually expires) rather than surfacing an error.
		if hasPrev {
			c.hold(name, prev, false, out)
		}
		return
	}

	if conf < c.lowConfidence {
		if hasPrev {
			c.hold(name, prev, true, out)
		}
		// A low-confidence joint with no history has nothing to hold.
		return
	}

	c.missing[name] = 0

	if !hasPrev || !prev.Tracked {
		out[name] = model.JointSample{Pos: raw, Tracked: true, Confidence: conf}
		return
	}

	clamped := clampDelta(prev.Pos, raw, c.maxDelta)
	out[name] = model.JointSample{
		Pos:        ema(prev.Pos, clamped, c.alpha),
		Tracked:    true,
		Confidence: conf,
	}
}

// hold re-emits the previous sample with decayed confidence, or drops the
// joint once it has been held for more than holdFrames consecutive frames.
func (c *Conditioner) hold(name string, prev model.JointSample, tracked bool, out model.JointMap) {
	c.missing[name]++
	if c.missing[name] > c.holdFrames {
		delete(c.missing, name)
		metrics.RecordJointDropped()
		return
	}
	metrics.RecordJointOccluded()
	out[name] = model.JointSample{
		Pos:        prev.Pos,
		Tracked:    tracked && prev.Tracked,
		Confidence: prev.Confidence * c.decay,
	}
}

// clampDelta scales the delta vector so the displacement from prev never
// exceeds maxDelta.
func clampDelta(prev, next model.Vec, maxDelta float64) model.Vec {
	dx := next.X - prev.X
	dy := next.Y - prev.Y
	dz := next.Z - prev.Z
	dist := math.Sqrt(dx*dx + dy*dy + dz*dz)
	if dist <= maxDelta || dist == 0 {
		return next
	}
	scale := maxDelta / dist
	return model.Vec{
		X: prev.X + dx*scale,
		Y: prev.Y + dy*scale,
		Z: prev.Z + dz*scale,
	}
}

// ema blends prev and next; alpha=1 passes next through unsmoothed.
func ema(prev, next model.Vec, alpha float64) model.Vec {
	return model.Vec{
		X: alpha*next.X + (1-alpha)*prev.X,
		Y: alpha*next.Y + (1-alpha)*prev.Y,
		Z: alpha*next.Z + (1-alpha)*prev.Z,
	}
}

func finiteVec(v model.Vec) bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
