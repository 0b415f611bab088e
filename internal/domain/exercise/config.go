// Package exercise defines the declarative, versioned exercise configuration
// consumed by the segmentation state machine and the scoring engine, plus the
// load-time validator that rejects a bad configuration before any frame is
// processed.
//
// All identifiers (exercise, phase, metric, fault, cue) are stable strings;
// nothing here generates keys dynamically, since downstream aggregation joins
// on them across versions.
package exercise

import (
	"time"

	"github.com/formsense/repkit/internal/domain/kinematics"
	"github.com/formsense/repkit/internal/domain/model"
)

// Hysteresis gates a transition on a metric threshold. Each transition
// evaluates only its own enter threshold; Exit documents the paired reverse
// transition's threshold and is cross-checked by the validator, never
// evaluated here.
type Hysteresis struct {
	Metric string  `koanf:"metric"`
	Below  bool    `koanf:"below"` // true: fire at value <= Enter; false: at value >= Enter
	Enter  float64 `koanf:"enter"`
	Exit   float64 `koanf:"exit"`
}

// DirectionGate requires the sign of a velocity metric to match before a
// transition may fire.
type DirectionGate struct {
	Metric string `koanf:"metric"`
	Sign   int    `koanf:"sign"` // +1 rising, -1 falling
}

// Transition declares one edge of the phase machine. Transitions are
// evaluated in declaration order; the first satisfied one fires.
type Transition struct {
	From       string         `koanf:"from"`
	To         string         `koanf:"to"`
	MinDwellMS int            `koanf:"min_dwell_ms"`
	Direction  *DirectionGate `koanf:"direction"`
	Hysteresis *Hysteresis    `koanf:"hysteresis"`
	When       *Condition     `koanf:"when"`
}

// Dwell returns the minimum time in the source phase before this transition
// may fire.
func (t Transition) Dwell() time.Duration {
	return time.Duration(t.MinDwellMS) * time.Millisecond
}

// ROMMetric scores range-of-motion coverage of a target band. Keys lists one
// metric per side (one entry for symmetric metrics); sides aggregate by
// minimum to penalize asymmetry.
type ROMMetric struct {
	Keys      []string `koanf:"keys"`
	TargetMin float64  `koanf:"target_min"`
	TargetMax float64  `koanf:"target_max"`
	Weight    float64  `koanf:"weight"`
}

// Extreme selectors for depth metrics.
const (
	ExtremeMin = "min"
	ExtremeMax = "max"
)

// DepthMetric scores how close a rep's extreme came to an optimal value.
type DepthMetric struct {
	Keys           []string `koanf:"keys"`
	Extreme        string   `koanf:"extreme"` // ExtremeMin or ExtremeMax
	Optimal        float64  `koanf:"optimal"`
	Tolerance      float64  `koanf:"tolerance"`
	PenaltyPerUnit float64  `koanf:"penalty_per_unit"`
	Weight         float64  `koanf:"weight"`
}

// FaultDef declares one detectable form fault and its score penalty.
type FaultDef struct {
	ID      string       `koanf:"id"`
	When    RepCondition `koanf:"when"`
	Penalty float64      `koanf:"penalty"`
	Message string       `koanf:"message"`
}

// CueDef declares one real-time coaching cue. The cue fires once its
// predicate has held continuously for the debounce duration, then not again
// until the cooldown has elapsed.
type CueDef struct {
	ID         string            `koanf:"id"`
	Phases     []string          `koanf:"phases"` // phase gate; empty means all phases
	When       Condition         `koanf:"when"`
	DebounceMS int               `koanf:"debounce_ms"`
	CooldownMS int               `koanf:"cooldown_ms"`
	Severity   model.CueSeverity `koanf:"severity"`
	Text       string            `koanf:"text"`
}

// Debounce returns how long the cue predicate must hold before firing.
func (c CueDef) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Cooldown returns the minimum spacing between firings of the same cue.
func (c CueDef) Cooldown() time.Duration {
	return time.Duration(c.CooldownMS) * time.Millisecond
}

// RejectRule discards a finished rep that matches its condition.
type RejectRule struct {
	Reason string       `koanf:"reason"`
	When   RepCondition `koanf:"when"`
}

// Weights blends the component scores into the final quality index.
type Weights struct {
	ROM    float64 `koanf:"rom"`
	Depth  float64 `koanf:"depth"`
	Faults float64 `koanf:"faults"`
}

// Conditioning holds the signal-conditioner parameters for this exercise.
type Conditioning struct {
	MaxDelta      float64 `koanf:"max_delta"`
	Alpha         float64 `koanf:"alpha"`
	LowConfidence float64 `koanf:"low_confidence"`
	HoldFrames    int     `koanf:"hold_frames"`
	Decay         float64 `koanf:"decay"`
}

// Buffers bounds the rolling windows and resolves the gated-frame question:
// by default gated frames touch nothing; AppendWhenGated lets them append to
// rolling windows while still never updating rep aggregates.
type Buffers struct {
	WindowSamples   int  `koanf:"window_samples"`
	WindowAgeMS     int  `koanf:"window_age_ms"`
	AppendWhenGated bool `koanf:"append_when_gated"`
}

// WindowAge returns the rolling-window time bound.
func (b Buffers) WindowAge() time.Duration {
	return time.Duration(b.WindowAgeMS) * time.Millisecond
}

// Config is the full declarative exercise definition. It must pass Validate
// before an exercise instance is created and is immutable at runtime.
type Config struct {
	ID      string `koanf:"id"`
	Name    string `koanf:"name"`
	Version int    `koanf:"version"`

	Phases       []string     `koanf:"phases"`
	InitialPhase string       `koanf:"initial_phase"`
	Transitions  []Transition `koanf:"transitions"`

	RequiredMetrics []string          `koanf:"required_metrics"`
	Metrics         []kinematics.Spec `koanf:"metrics"`
	ConfidenceGate  float64           `koanf:"confidence_gate"`

	StartWhen  Condition    `koanf:"start_when"`
	EndWhen    Condition    `koanf:"end_when"`
	Rejections []RejectRule `koanf:"rejections"`

	ROM    []ROMMetric   `koanf:"rom"`
	Depth  []DepthMetric `koanf:"depth"`
	Faults []FaultDef    `koanf:"faults"`
	Cues   []CueDef      `koanf:"cues"`

	Weights      Weights      `koanf:"weights"`
	Conditioning Conditioning `koanf:"conditioning"`
	Buffers      Buffers      `koanf:"buffers"`
}

// requiredSet returns the required metrics as a set.
func (c *Config) requiredSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.RequiredMetrics))
	for _, k := range c.RequiredMetrics {
		set[k] = struct{}{}
	}
	return set
}
