package exercise

import (
	"fmt"
	"time"

	"github.com/formsense/repkit/internal/domain/model"
	"github.com/formsense/repkit/internal/domain/window"
)

// Snapshot is the read-only view of one frame handed to frame predicates.
type Snapshot struct {
	TS           time.Time
	Phase        string
	PhaseElapsed time.Duration
	RepActive    bool
	RepIndex     int
	Values       map[string]float64
	Confidence   map[string]float64
	Windows      map[string]*window.Window
}

// Value returns a metric value, or NaN semantics via the zero value when the
// key is unknown (callers gate on confidence, not on presence).
func (s *Snapshot) Value(key string) float64 {
	return s.Values[key]
}

// Window returns the rolling window for a metric key, or nil.
func (s *Snapshot) Window(key string) *window.Window {
	return s.Windows[key]
}

// Predicate evaluates a frame snapshot.
type Predicate func(s *Snapshot) bool

// RepPredicate evaluates a finished rep summary.
type RepPredicate func(sum *model.RepSummary) bool

// Condition is a tagged variant: either an inline predicate (Go-defined
// configurations) or a named reference resolved against a Registry at load
// time (serialized configurations). Exactly one of Fn/Ref is set after
// resolution; an empty Condition is "unset".
type Condition struct {
	Fn  Predicate `koanf:"-"`
	Ref string    `koanf:"ref"`
}

// IsZero reports whether the condition is unset.
func (c Condition) IsZero() bool {
	return c.Fn == nil && c.Ref == ""
}

// Eval runs the condition against a snapshot. A panicking predicate counts
// as false and is reported through err for diagnostic logging; it never
// propagates.
func (c Condition) Eval(s *Snapshot) (result bool, err error) {
	if c.Fn == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("%w: condition %q: %v", ErrPredicatePanic, c.Ref, r)
		}
	}()
	return c.Fn(s), nil
}

// RepCondition is the rep-summary counterpart of Condition.
type RepCondition struct {
	Fn  RepPredicate `koanf:"-"`
	Ref string       `koanf:"ref"`
}

// IsZero reports whether the condition is unset.
func (c RepCondition) IsZero() bool {
	return c.Fn == nil && c.Ref == ""
}

// Eval runs the condition against a rep summary with the same panic
// containment as Condition.Eval.
func (c RepCondition) Eval(sum *model.RepSummary) (result bool, err error) {
	if c.Fn == nil {
		return false, nil
	}
	defer func() {
		if r := recover(); r != nil {
			result = false
			err = fmt.Errorf("%w: rep condition %q: %v", ErrPredicatePanic, c.Ref, r)
		}
	}()
	return c.Fn(sum), nil
}

// Registry resolves named condition references for one configuration. Hosts
// register predicates before loading a serialized exercise definition.
type Registry struct {
	frame map[string]Predicate
	rep   map[string]RepPredicate
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		frame: make(map[string]Predicate),
		rep:   make(map[string]RepPredicate),
	}
}

// RegisterFrame adds a named frame predicate.
func (r *Registry) RegisterFrame(name string, p Predicate) *Registry {
	r.frame[name] = p
	return r
}

// RegisterRep adds a named rep-summary predicate.
func (r *Registry) RegisterRep(name string, p RepPredicate) *Registry {
	r.rep[name] = p
	return r
}

// resolve fills c.Fn from the registry when only Ref is set.
func (r *Registry) resolve(c *Condition) error {
	if c.Fn != nil || c.Ref == "" {
		return nil
	}
	p, ok := r.frame[c.Ref]
	if !ok {
		return fmt.Errorf("%w: unknown condition %q", ErrInvalidConfig, c.Ref)
	}
	c.Fn = p
	return nil
}

func (r *Registry) resolveRep(c *RepCondition) error {
	if c.Fn != nil || c.Ref == "" {
		return nil
	}
	p, ok := r.rep[c.Ref]
	if !ok {
		return fmt.Errorf("%w: unknown rep condition %q", ErrInvalidConfig, c.Ref)
	}
	c.Fn = p
	return nil
}

// Resolve binds every named condition in the configuration against the
// registry. It must run before Validate for serialized configurations.
func (c *Config) Resolve(reg *Registry) error {
	if reg == nil {
		reg = NewRegistry()
	}
	if err := reg.resolve(&c.StartWhen); err != nil {
		return fmt.Errorf("start_when: %w", err)
	}
	if err := reg.resolve(&c.EndWhen); err != nil {
		return fmt.Errorf("end_when: %w", err)
	}
	for i := range c.Transitions {
		if c.Transitions[i].When == nil {
			continue
		}
		if err := reg.resolve(c.Transitions[i].When); err != nil {
			return fmt.Errorf("transition %d: %w", i, err)
		}
	}
	for i := range c.Cues {
		if err := reg.resolve(&c.Cues[i].When); err != nil {
			return fmt.Errorf("cue %q: %w", c.Cues[i].ID, err)
		}
	}
	for i := range c.Faults {
		if err := reg.resolveRep(&c.Faults[i].When); err != nil {
			return fmt.Errorf("fault %q: %w", c.Faults[i].ID, err)
		}
	}
	for i := range c.Rejections {
		if err := reg.resolveRep(&c.Rejections[i].When); err != nil {
			return fmt.Errorf("rejection %q: %w", c.Rejections[i].Reason, err)
		}
	}
	return nil
}
