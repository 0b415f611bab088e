package exercise

import (
	"fmt"
	"math"
)

// Validate checks the configuration once at load time. Any failure rejects
// the configuration before a single frame is processed; nothing checked here
// can surface as a runtime error later.
func (c *Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing exercise id", ErrInvalidConfig)
	}
	if c.Version < 1 {
		return fmt.Errorf("%w: exercise %q: version must be >= 1", ErrInvalidConfig, c.ID)
	}
	if err := c.validatePhases(); err != nil {
		return err
	}
	if err := c.validateMetrics(); err != nil {
		return err
	}
	if err := c.validateTransitions(); err != nil {
		return err
	}
	if err := c.validateRepRules(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	return c.validateCues()
}

func (c *Config) validatePhases() error {
	if len(c.Phases) == 0 {
		return fmt.Errorf("%w: no phases declared", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Phases))
	for _, p := range c.Phases {
		if p == "" {
			return fmt.Errorf("%w: empty phase id", ErrInvalidConfig)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: duplicate phase %q", ErrInvalidConfig, p)
		}
		seen[p] = struct{}{}
	}
	if _, ok := seen[c.InitialPhase]; !ok {
		return fmt.Errorf("%w: initial phase %q is not declared", ErrInvalidConfig, c.InitialPhase)
	}
	return nil
}

func (c *Config) validateMetrics() error {
	if len(c.RequiredMetrics) == 0 {
		return fmt.Errorf("%w: no required metrics", ErrInvalidConfig)
	}
	if c.ConfidenceGate < 0 || c.ConfidenceGate > 1 || math.IsNaN(c.ConfidenceGate) {
		return fmt.Errorf("%w: confidence gate %v outside [0,1]", ErrInvalidConfig, c.ConfidenceGate)
	}

	specs := make(map[string]struct{}, len(c.Metrics))
	for _, spec := range c.Metrics {
		if spec.Key == "" {
			return fmt.Errorf("%w: metric spec with empty key", ErrInvalidConfig)
		}
		if _, dup := specs[spec.Key]; dup {
			return fmt.Errorf("%w: duplicate metric spec %q", ErrInvalidConfig, spec.Key)
		}
		specs[spec.Key] = struct{}{}
	}
	for _, spec := range c.Metrics {
		if spec.Source == "" {
			continue
		}
		if _, ok := specs[spec.Source]; !ok {
			return fmt.Errorf("%w: metric %q derives from undeclared metric %q", ErrInvalidConfig, spec.Key, spec.Source)
		}
	}
	for _, key := range c.RequiredMetrics {
		if _, ok := specs[key]; !ok {
			return fmt.Errorf("%w: required metric %q has no spec", ErrInvalidConfig, key)
		}
	}

	// The metric frame carries one entry per spec, so the spec set and the
	// required set must coincide or the frame invariant breaks.
	required := c.requiredSet()
	for _, spec := range c.Metrics {
		if _, ok := required[spec.Key]; !ok {
			return fmt.Errorf("%w: metric spec %q is not in the required set", ErrInvalidConfig, spec.Key)
		}
	}
	return nil
}

func (c *Config) validateTransitions() error {
	phases := make(map[string]struct{}, len(c.Phases))
	for _, p := range c.Phases {
		phases[p] = struct{}{}
	}
	required := c.requiredSet()

	for i, tr := range c.Transitions {
		if _, ok := phases[tr.From]; !ok {
			return fmt.Errorf("%w: transition %d: unknown phase %q", ErrInvalidConfig, i, tr.From)
		}
		if _, ok := phases[tr.To]; !ok {
			return fmt.Errorf("%w: transition %d: unknown phase %q", ErrInvalidConfig, i, tr.To)
		}
		if tr.MinDwellMS < 0 {
			return fmt.Errorf("%w: transition %d: negative dwell", ErrInvalidConfig, i)
		}
		if h := tr.Hysteresis; h != nil {
			if _, ok := required[h.Metric]; !ok {
				return fmt.Errorf("%w: transition %d: hysteresis metric %q is not required", ErrInvalidConfig, i, h.Metric)
			}
			if !finiteAll(h.Enter, h.Exit) {
				return fmt.Errorf("%w: transition %d: non-finite hysteresis thresholds", ErrInvalidConfig, i)
			}
		}
		if d := tr.Direction; d != nil {
			if _, ok := required[d.Metric]; !ok {
				return fmt.Errorf("%w: transition %d: direction metric %q is not required", ErrInvalidConfig, i, d.Metric)
			}
			if d.Sign != 1 && d.Sign != -1 {
				return fmt.Errorf("%w: transition %d: direction sign must be +1 or -1", ErrInvalidConfig, i)
			}
		}
		if tr.When != nil && tr.When.IsZero() {
			return fmt.Errorf("%w: transition %d: empty predicate", ErrInvalidConfig, i)
		}
		if tr.When != nil && tr.When.Fn == nil {
			return fmt.Errorf("%w: transition %d: unresolved predicate %q", ErrInvalidConfig, i, tr.When.Ref)
		}
	}
	return c.validateHysteresisPairs()
}

// validateHysteresisPairs cross-checks each pair of reverse transitions whose
// hysteresis rules gate the same metric: the rising side's enter threshold
// must sit strictly above the falling side's, and a declared exit must match
// the paired enter. Overlapping thresholds flip-flop on a single value.
func (c *Config) validateHysteresisPairs() error {
	for i, tr := range c.Transitions {
		if tr.Hysteresis == nil {
			continue
		}
		for j := i + 1; j < len(c.Transitions); j++ {
			rev := c.Transitions[j]
			if rev.Hysteresis == nil || rev.From != tr.To || rev.To != tr.From || rev.Hysteresis.Metric != tr.Hysteresis.Metric {
				continue
			}
			if err := checkHysteresisPair(i, j, tr.Hysteresis, rev.Hysteresis); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkHysteresisPair(i, j int, a, b *Hysteresis) error {
	if a.Below == b.Below {
		return fmt.Errorf("%w: transitions %d and %d: hysteresis pair on %q fires in the same direction", ErrInvalidConfig, i, j, a.Metric)
	}
	down, up := a, b
	if !a.Below {
		down, up = b, a
	}
	if up.Enter <= down.Enter {
		return fmt.Errorf("%w: transitions %d and %d: hysteresis thresholds on %q overlap (rising enter %v <= falling enter %v)",
			ErrInvalidConfig, i, j, a.Metric, up.Enter, down.Enter)
	}
	if a.Exit != 0 && a.Exit != b.Enter {
		return fmt.Errorf("%w: transition %d: hysteresis exit %v does not match the paired enter %v", ErrInvalidConfig, i, a.Exit, b.Enter)
	}
	if b.Exit != 0 && b.Exit != a.Enter {
		return fmt.Errorf("%w: transition %d: hysteresis exit %v does not match the paired enter %v", ErrInvalidConfig, j, b.Exit, a.Enter)
	}
	return nil
}

func (c *Config) validateRepRules() error {
	if c.StartWhen.Fn == nil {
		return fmt.Errorf("%w: missing or unresolved start_when", ErrInvalidConfig)
	}
	if c.EndWhen.Fn == nil {
		return fmt.Errorf("%w: missing or unresolved end_when", ErrInvalidConfig)
	}
	for _, rr := range c.Rejections {
		if rr.Reason == "" {
			return fmt.Errorf("%w: rejection rule without reason", ErrInvalidConfig)
		}
		if rr.When.Fn == nil {
			return fmt.Errorf("%w: rejection %q: unresolved condition", ErrInvalidConfig, rr.Reason)
		}
	}
	return nil
}

func (c *Config) validateScoring() error {
	required := c.requiredSet()

	for i, rom := range c.ROM {
		if len(rom.Keys) == 0 {
			return fmt.Errorf("%w: rom metric %d: no keys", ErrInvalidConfig, i)
		}
		for _, key := range rom.Keys {
			if _, ok := required[key]; !ok {
				return fmt.Errorf("%w: rom metric %q is not required", ErrInvalidConfig, key)
			}
		}
		if !finiteAll(rom.TargetMin, rom.TargetMax, rom.Weight) || rom.Weight < 0 {
			return fmt.Errorf("%w: rom metric %d: bad band or weight", ErrInvalidConfig, i)
		}
	}
	for i, d := range c.Depth {
		if len(d.Keys) == 0 {
			return fmt.Errorf("%w: depth metric %d: no keys", ErrInvalidConfig, i)
		}
		for _, key := range d.Keys {
			if _, ok := required[key]; !ok {
				return fmt.Errorf("%w: depth metric %q is not required", ErrInvalidConfig, key)
			}
		}
		if d.Extreme != ExtremeMin && d.Extreme != ExtremeMax {
			return fmt.Errorf("%w: depth metric %d: extreme must be %q or %q", ErrInvalidConfig, i, ExtremeMin, ExtremeMax)
		}
		if !finiteAll(d.Optimal, d.Tolerance, d.PenaltyPerUnit, d.Weight) || d.Weight < 0 {
			return fmt.Errorf("%w: depth metric %d: non-finite parameters", ErrInvalidConfig, i)
		}
	}

	seenFaults := make(map[string]struct{}, len(c.Faults))
	for _, f := range c.Faults {
		if f.ID == "" {
			return fmt.Errorf("%w: fault with empty id", ErrInvalidConfig)
		}
		if _, dup := seenFaults[f.ID]; dup {
			return fmt.Errorf("%w: duplicate fault id %q", ErrInvalidConfig, f.ID)
		}
		seenFaults[f.ID] = struct{}{}
		if f.When.Fn == nil {
			return fmt.Errorf("%w: fault %q: unresolved condition", ErrInvalidConfig, f.ID)
		}
		if !finiteAll(f.Penalty) || f.Penalty < 0 {
			return fmt.Errorf("%w: fault %q: bad penalty", ErrInvalidConfig, f.ID)
		}
	}

	if !finiteAll(c.Weights.ROM, c.Weights.Depth, c.Weights.Faults) {
		return fmt.Errorf("%w: non-finite score weights", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) validateCues() error {
	phases := make(map[string]struct{}, len(c.Phases))
	for _, p := range c.Phases {
		phases[p] = struct{}{}
	}
	seen := make(map[string]struct{}, len(c.Cues))
	for _, cue := range c.Cues {
		if cue.ID == "" {
			return fmt.Errorf("%w: cue with empty id", ErrInvalidConfig)
		}
		if _, dup := seen[cue.ID]; dup {
			return fmt.Errorf("%w: duplicate cue id %q", ErrInvalidConfig, cue.ID)
		}
		seen[cue.ID] = struct{}{}
		for _, p := range cue.Phases {
			if _, ok := phases[p]; !ok {
				return fmt.Errorf("%w: cue %q gates on unknown phase %q", ErrInvalidConfig, cue.ID, p)
			}
		}
		if cue.When.Fn == nil {
			return fmt.Errorf("%w: cue %q: unresolved condition", ErrInvalidConfig, cue.ID)
		}
		if cue.DebounceMS < 0 || cue.CooldownMS < 0 {
			return fmt.Errorf("%w: cue %q: negative debounce or cooldown", ErrInvalidConfig, cue.ID)
		}
	}
	return nil
}

func finiteAll(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
