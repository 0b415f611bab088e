// Package kinematics turns conditioned joint maps into named scalar metrics
// with per-metric confidences. Missing data is never an error here: a metric
// whose prerequisites are unmet carries NaN with confidence 0, and everything
// downstream gates on confidence rather than value checks.
package kinematics

import (
	"math"
	"time"

	"github.com/formsense/repkit/internal/domain/model"
)

// MetricKind selects how a metric value is computed.
type MetricKind string

// Supported metric kinds.
const (
	KindAngle    MetricKind = "angle"    // degrees at the middle joint
	KindDistance MetricKind = "distance" // Euclidean distance between two joints
	KindVelocity MetricKind = "velocity" // d(source metric)/dt, per second
)

const (
	angleJointCount    = 3
	distanceJointCount = 2
	radToDeg           = 180.0 / math.Pi
)

// Spec declares one metric to extract.
type Spec struct {
	Key        string     `koanf:"key"`
	Kind       MetricKind `koanf:"kind"`
	Joints     []string   `koanf:"joints"` // angle: [a, vertex, c]; distance: [a, b]
	Source     string     `koanf:"source"` // velocity: key of the source metric
	Requires3D bool       `koanf:"requires_3d"`
	Alpha      float64    `koanf:"alpha"` // EMA on the metric value; 0 means unsmoothed
}

// Extractor computes the declared metric set frame by frame. It owns the
// smoothed metric history used to derive velocities; one Extractor belongs to
// one exercise instance and must not be shared.
type Extractor struct {
	specs []Spec

	prevValue map[string]float64
	prevConf  map[string]float64
	prevTS    time.Time
	hasPrev   bool
}

// NewExtractor creates an Extractor for the declared specs. Spec sanity is
// the configuration validator's job; the extractor only degrades gracefully.
func NewExtractor(specs []Spec) *Extractor {
	return &Extractor{
		specs:     specs,
		prevValue: make(map[string]float64),
		prevConf:  make(map[string]float64),
	}
}

// Reset clears the metric history, as when the exercise instance restarts.
func (e *Extractor) Reset() {
	e.prevValue = make(map[string]float64)
	e.prevConf = make(map[string]float64)
	e.hasPrev = false
}

// Extract computes one metric frame. The returned maps contain exactly one
// entry per declared spec.
func (e *Extractor) Extract(ts time.Time, dim int, joints model.JointMap) model.MetricFrame {
	frame := model.MetricFrame{
		TS:         ts,
		Values:     make(map[string]float64, len(e.specs)),
		Confidence: make(map[string]float64, len(e.specs)),
	}

	// Base metrics first so velocities can read this frame's smoothed values.
	for _, spec := range e.specs {
		if spec.Kind == KindVelocity {
			continue
		}
		value, conf := e.computeBase(spec, dim, joints)
		value, conf = e.smooth(spec, value, conf)
		frame.Values[spec.Key] = value
		frame.Confidence[spec.Key] = conf
	}

	dt := ts.Sub(e.prevTS).Seconds()
	for _, spec := range e.specs {
		if spec.Kind != KindVelocity {
			continue
		}
		value, conf := e.computeVelocity(spec, frame, dt)
		frame.Values[spec.Key] = value
		frame.Confidence[spec.Key] = conf
	}

	// Velocities for the next frame derive from this frame's smoothed values.
	for _, spec := range e.specs {
		if spec.Kind == KindVelocity {
			continue
		}
		e.prevValue[spec.Key] = frame.Values[spec.Key]
		e.prevConf[spec.Key] = frame.Confidence[spec.Key]
	}
	e.prevTS = ts
	e.hasPrev = true

	return frame
}

func (e *Extractor) computeBase(spec Spec, dim int, joints model.JointMap) (float64, float64) {
	if spec.Requires3D && dim != model.Pose3D {
		// Never fabricate depth for a 3D-only metric.
		return math.NaN(), 0
	}

	switch spec.Kind {
	case KindAngle:
		if len(spec.Joints) != angleJointCount {
			return math.NaN(), 0
		}
		a, okA := joints[spec.Joints[0]]
		v, okV := joints[spec.Joints[1]]
		c, okC := joints[spec.Joints[2]]
		if !okA || !okV || !okC {
			return math.NaN(), 0
		}
		return angleDeg(a.Pos, v.Pos, c.Pos), minConf(a, v, c)

	case KindDistance:
		if len(spec.Joints) != distanceJointCount {
			return math.NaN(), 0
		}
		a, okA := joints[spec.Joints[0]]
		b, okB := joints[spec.Joints[1]]
		if !okA || !okB {
			return math.NaN(), 0
		}
		return dist(a.Pos, b.Pos), minConf(a, b)

	default:
		return math.NaN(), 0
	}
}

// computeVelocity derives a rate of change from the already-smoothed history
// of the source metric. The confidence of a derived metric is the minimum of
// its inputs' confidences.
func (e *Extractor) computeVelocity(spec Spec, frame model.MetricFrame, dt float64) (float64, float64) {
	cur, okCur := frame.Values[spec.Source]
	prev, okPrev := e.prevValue[spec.Source]
	if !e.hasPrev || !okCur || !okPrev || dt <= 0 {
		return math.NaN(), 0
	}
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return math.NaN(), 0
	}
	conf := math.Min(frame.Confidence[spec.Source], e.prevConf[spec.Source])
	return (cur - prev) / dt, conf
}

// smooth applies the per-metric EMA. Smoothing resumes from scratch after a
// NaN gap rather than blending across it.
func (e *Extractor) smooth(spec Spec, value, conf float64) (float64, float64) {
	if spec.Alpha <= 0 || spec.Alpha >= 1 || math.IsNaN(value) {
		return value, conf
	}
	prev, ok := e.prevValue[spec.Key]
	if !ok || math.IsNaN(prev) {
		return value, conf
	}
	return spec.Alpha*value + (1-spec.Alpha)*prev, conf
}

// angleDeg returns the angle at vertex v between rays v->a and v->c.
func angleDeg(a, v, c model.Vec) float64 {
	ax, ay, az := a.X-v.X, a.Y-v.Y, a.Z-v.Z
	cx, cy, cz := c.X-v.X, c.Y-v.Y, c.Z-v.Z
	na := math.Sqrt(ax*ax + ay*ay + az*az)
	nc := math.Sqrt(cx*cx + cy*cy + cz*cz)
	if na == 0 || nc == 0 {
		return math.NaN()
	}
	cos := (ax*cx + ay*cy + az*cz) / (na * nc)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * radToDeg
}

func dist(a, b model.Vec) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func minConf(samples ...model.JointSample) float64 {
	m := 1.0
	for _, s := range samples {
		if s.Confidence < m {
			m = s.Confidence
		}
	}
	return m
}
