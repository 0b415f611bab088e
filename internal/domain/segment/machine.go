// Package segment implements the per-exercise-instance state machine that
// cuts the continuous metric stream into repetitions. Each frame runs one
// strictly ordered pass: confidence gate, window update, cue evaluation, rep
// start, phase transition, rep end. All mutable state lives in the Machine;
// nothing is shared between instances.
package segment

import (
	"context"
	"time"

	"github.com/formsense/repkit/internal/domain/aggregate"
	"github.com/formsense/repkit/internal/domain/exercise"
	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/internal/domain/window"
	"github.com/formsense/repkit/pkg/logger"
	"github.com/formsense/repkit/pkg/metrics"
)

// Scorer turns a finished rep summary into a score breakdown.
type Scorer interface {
	ScoreRep(sum *model.RepSummary) *model.ScoreBreakdown
}

// Option applies a configuration option to the Machine.
type Option func(*Machine)

// WithLogger sets the diagnostic logger.
func WithLogger(log logger.Logger) Option {
	return func(m *Machine) {
		if log != nil {
			m.log = log
		}
	}
}

// cueState tracks one cue's debounce and cooldown bookkeeping.
type cueState struct {
	trueSince time.Time
	holding   bool
	lastFired time.Time
	hasFired  bool
}

// Machine segments one exercise instance's metric stream into reps. It must
// be driven by serialized calls; it owns its rolling windows and cue state
// exclusively and is discarded when tracking stops.
type Machine struct {
	cfg    *exercise.Config
	scorer Scorer
	agg    *aggregate.Aggregator
	log    logger.Logger

	phase        string
	phaseEntered time.Time
	lastChange   time.Time
	repActive    bool
	repIndex     int
	windows      map[string]*window.Window
	cues         map[string]*cueState
	started      bool
}

// NewMachine creates a Machine for a validated configuration.
func NewMachine(cfg *exercise.Config, scorer Scorer, opts ...Option) *Machine {
	m := &Machine{
		cfg:    cfg,
		scorer: scorer,
		agg:    aggregate.New(cfg.RequiredMetrics),
		log:    logger.Get().Named("segment"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Reset()
	return m
}

// Reset returns the machine to the initial phase and recreates all owned
// state, as when the exercise instance restarts.
func (m *Machine) Reset() {
	m.phase = m.cfg.InitialPhase
	m.repActive = false
	m.repIndex = 0
	m.started = false
	m.agg.Abort()
	m.windows = make(map[string]*window.Window, len(m.cfg.RequiredMetrics))
	for _, key := range m.cfg.RequiredMetrics {
		m.windows[key] = window.New(
			window.WithCapacity(m.cfg.Buffers.WindowSamples),
			window.WithMaxAge(m.cfg.Buffers.WindowAge()),
		)
	}
	m.cues = make(map[string]*cueState, len(m.cfg.Cues))
	for _, cue := range m.cfg.Cues {
		m.cues[cue.ID] = &cueState{}
	}
}

// Phase returns the current phase id.
func (m *Machine) Phase() string {
	return m.phase
}

// RepActive reports whether a rep is in flight.
func (m *Machine) RepActive() bool {
	return m.repActive
}

// RepIndex returns the monotonically increasing rep counter.
func (m *Machine) RepIndex() int {
	return m.repIndex
}

// LastTransition returns the timestamp of the most recent phase change.
func (m *Machine) LastTransition() time.Time {
	return m.lastChange
}

// Step processes one metric frame and returns the lifecycle events it
// produced, in emission order. A gated frame freezes phase and rep state and
// emits nothing.
func (m *Machine) Step(frame model.MetricFrame) []model.Event {
	if !m.started {
		m.phaseEntered = frame.TS
		m.lastChange = frame.TS
		m.started = true
	}

	// 1. Confidence gate.
	if m.gated(frame) {
		metrics.RecordFrameGated()
		if m.cfg.Buffers.AppendWhenGated {
			m.pushWindows(frame)
		}
		return nil
	}

	// 2. Window update.
	m.pushWindows(frame)

	// Mid-rep frames feed the aggregate before any same-frame finalization.
	if m.repActive {
		m.agg.Update(frame)
	}

	var events []model.Event
	snap := m.snapshot(frame)

	// 3. Cue evaluation.
	events = append(events, m.evalCues(frame.TS, snap)...)

	// 4. Rep start.
	if !m.repActive {
		if m.eval(m.cfg.StartWhen, snap, "start_when") {
			m.repActive = true
			m.repIndex++
			m.agg.Begin(m.repIndex, frame)
			snap.RepActive = true
			snap.RepIndex = m.repIndex
			events = append(events, model.RepStartEvent(frame.TS, m.repIndex))
		}
	}

	// 5. Phase transition: first declared match wins.
	m.evalTransitions(frame, snap)

	// 6. Rep end.
	if m.repActive && m.eval(m.cfg.EndWhen, snap, "end_when") {
		events = append(events, m.finishRep(frame))
	}

	return events
}

// gated reports whether any required metric's confidence is below the
// exercise's minimum this frame.
func (m *Machine) gated(frame model.MetricFrame) bool {
	for _, key := range m.cfg.RequiredMetrics {
		if frame.Confidence[key] < m.cfg.ConfidenceGate {
			return true
		}
	}
	return false
}

func (m *Machine) pushWindows(frame model.MetricFrame) {
	for key, w := range m.windows {
		w.Push(frame.TS, frame.Values[key])
	}
}

func (m *Machine) snapshot(frame model.MetricFrame) *exercise.Snapshot {
	return &exercise.Snapshot{
		TS:           frame.TS,
		Phase:        m.phase,
		PhaseElapsed: frame.TS.Sub(m.phaseEntered),
		RepActive:    m.repActive,
		RepIndex:     m.repIndex,
		Values:       frame.Values,
		Confidence:   frame.Confidence,
		Windows:      m.windows,
	}
}

// evalCues applies phase gating, debounce, and cooldown to every declared
// cue and returns the cue events that fire this frame.
func (m *Machine) evalCues(ts time.Time, snap *exercise.Snapshot) []model.Event {
	var events []model.Event
	for _, cue := range m.cfg.Cues {
		if !phaseGateAllows(cue.Phases, m.phase) {
			m.cues[cue.ID].holding = false
			continue
		}
		state := m.cues[cue.ID]

		if !m.eval(cue.When, snap, "cue "+cue.ID) {
			state.holding = false
			continue
		}
		if !state.holding {
			state.holding = true
			state.trueSince = ts
		}
		if ts.Sub(state.trueSince) < cue.Debounce() {
			continue
		}
		if state.hasFired && ts.Sub(state.lastFired) < cue.Cooldown() {
			continue
		}
		state.lastFired = ts
		state.hasFired = true
		metrics.RecordCueFired()
		events = append(events, model.CueEvent(ts, m.repIndex, cue.ID, cue.Severity, cue.Text))
	}
	return events
}

func phaseGateAllows(phases []string, current string) bool {
	if len(phases) == 0 {
		return true
	}
	for _, p := range phases {
		if p == current {
			return true
		}
	}
	return false
}

// evalTransitions fires at most one transition: the first declared one from
// the current phase whose dwell, direction gate, hysteresis threshold, and
// predicate are all satisfied.
func (m *Machine) evalTransitions(frame model.MetricFrame, snap *exercise.Snapshot) {
	for _, tr := range m.cfg.Transitions {
		if tr.From != m.phase {
			continue
		}
		if frame.TS.Sub(m.phaseEntered) < tr.Dwell() {
			continue
		}
		if tr.Direction != nil && !directionMatches(frame.Values[tr.Direction.Metric], tr.Direction.Sign) {
			continue
		}
		if tr.Hysteresis != nil && !thresholdMet(frame.Values[tr.Hysteresis.Metric], tr.Hysteresis) {
			continue
		}
		if tr.When != nil && !m.eval(*tr.When, snap, "transition "+tr.From+"->"+tr.To) {
			continue
		}
		m.phase = tr.To
		m.phaseEntered = frame.TS
		m.lastChange = frame.TS
		return
	}
}

func directionMatches(v float64, sign int) bool {
	if v != v { // NaN never matches
		return false
	}
	if sign > 0 {
		return v > 0
	}
	return v < 0
}

func thresholdMet(v float64, h *exercise.Hysteresis) bool {
	if v != v {
		return false
	}
	if h.Below {
		return v <= h.Enter
	}
	return v >= h.Enter
}

// finishRep finalizes the in-flight rep: aggregate, rejection rules, and
// either a rejected event with reasons or a completed event with the score.
func (m *Machine) finishRep(frame model.MetricFrame) model.Event {
	sum := m.agg.Finish(frame)
	m.repActive = false

	var reasons []string
	for _, rule := range m.cfg.Rejections {
		hit, err := rule.When.Eval(sum)
		if err != nil {
			metrics.RecordPredicatePanic()
			m.log.Warn(context.Background(), "rejection predicate failed; treating as not matched",
				logger.String("reason", rule.Reason),
				logger.Error(err),
			)
			continue
		}
		if hit {
			reasons = append(reasons, rule.Reason)
		}
	}
	if len(reasons) > 0 {
		metrics.RecordRepRejected()
		return model.RepRejectedEvent(frame.TS, sum.RepIndex, reasons)
	}

	score := m.scorer.ScoreRep(sum)
	metrics.RecordRepCompleted()
	metrics.ObserveRepDuration(sum.Duration.Seconds())
	return model.RepCompleteEvent(frame.TS, sum.RepIndex, sum, score)
}

// eval runs a frame condition with panic containment and diagnostic logging.
func (m *Machine) eval(cond exercise.Condition, snap *exercise.Snapshot, what string) bool {
	ok, err := cond.Eval(snap)
	if err != nil {
		metrics.RecordPredicatePanic()
		m.log.Warn(context.Background(), "predicate failed; treating as false",
			logger.String("condition", what),
			logger.Error(err),
		)
		return false
	}
	return ok
}
