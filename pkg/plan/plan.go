package plan

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"faultline-hq/faultline/pkg/inject"
)

// Behavior names the action a fault spec takes when matched.
type Behavior string

const (
	BehaviorError        Behavior = "error"
	BehaviorBlock        Behavior = "block"
	BehaviorDelay        Behavior = "delay"
	BehaviorDelayedError Behavior = "delayed-error"
	BehaviorKill         Behavior = "kill"
	BehaviorNoop         Behavior = "noop"
)

// FaultSpec is one declarative fault. The same shape serves YAML plan files
// and the admin API's JSON bodies.
type FaultSpec struct {
	// Class is the key class the fault applies to.
	Class string `yaml:"class" json:"class"`

	// Pattern is the key value regex. It must match the entire key value.
	Pattern string `yaml:"pattern" json:"pattern"`

	// Behavior selects what happens on a match.
	Behavior Behavior `yaml:"behavior" json:"behavior"`

	// Error is the failure message for error and delayed-error behaviors.
	Error string `yaml:"error,omitempty" json:"error,omitempty"`

	// Delay is the wait for delay and delayed-error behaviors.
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`

	// Count bounds how many checks the fault fires on. 0 means unlimited.
	Count uint64 `yaml:"count,omitempty" json:"count,omitempty"`
}

// Validate checks the spec for structural problems.
func (f *FaultSpec) Validate() error {
	if f.Class == "" {
		return fmt.Errorf("class cannot be empty")
	}
	if f.Pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}

	switch f.Behavior {
	case BehaviorError:
		if f.Error == "" {
			return fmt.Errorf("error behavior requires an error message")
		}
	case BehaviorDelayedError:
		if f.Error == "" {
			return fmt.Errorf("delayed-error behavior requires an error message")
		}
		if f.Delay <= 0 {
			return fmt.Errorf("delayed-error behavior requires a positive delay")
		}
	case BehaviorDelay:
		if f.Delay <= 0 {
			return fmt.Errorf("delay behavior requires a positive delay")
		}
	case BehaviorBlock, BehaviorKill, BehaviorNoop:
		// No parameters.
	case "":
		return fmt.Errorf("behavior cannot be empty")
	default:
		return fmt.Errorf("unknown behavior %q", f.Behavior)
	}

	return nil
}

// Apply registers the fault on inj.
func (f *FaultSpec) Apply(inj *inject.Injector) error {
	switch f.Behavior {
	case BehaviorError:
		return inj.InjectError(f.Class, f.Pattern, errors.New(f.Error), f.Count)
	case BehaviorBlock:
		return inj.InjectBlock(f.Class, f.Pattern, f.Count)
	case BehaviorDelay:
		return inj.InjectDelay(f.Class, f.Pattern, f.Delay, f.Count)
	case BehaviorDelayedError:
		return inj.InjectDelayedError(f.Class, f.Pattern, f.Delay, errors.New(f.Error), f.Count)
	case BehaviorKill:
		return inj.InjectKill(f.Class, f.Pattern, f.Count)
	case BehaviorNoop:
		return inj.InjectNoop(f.Class, f.Pattern, f.Count)
	default:
		return fmt.Errorf("unknown behavior %q", f.Behavior)
	}
}

// Plan is an ordered list of fault specs. Order matters: within a key class,
// earlier specs win over later ones.
type Plan struct {
	Faults []FaultSpec `yaml:"faults" json:"faults"`
}

// Load reads and parses a plan file. The plan is validated before returning.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks every fault spec in the plan.
func (p *Plan) Validate() error {
	for i := range p.Faults {
		if err := p.Faults[i].Validate(); err != nil {
			return fmt.Errorf("faults[%d]: %w", i, err)
		}
	}
	return nil
}

// Applier applies plans to an injector, replacing the faults it registered
// for the previous plan.
type Applier struct {
	injector *inject.Injector

	mu      sync.Mutex
	applied []appliedFault
}

type appliedFault struct {
	class   string
	pattern string
}

// NewApplier creates an applier bound to inj.
func NewApplier(inj *inject.Injector) *Applier {
	return &Applier{injector: inj}
}

// Apply validates p, removes the faults from the previously applied plan,
// and registers p's faults in order. On a validation error the previous
// plan stays in effect.
func (a *Applier) Apply(p *Plan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, prev := range a.applied {
		a.injector.RemoveFault(prev.class, prev.pattern)
	}
	a.applied = a.applied[:0]

	for i := range p.Faults {
		spec := &p.Faults[i]
		if err := spec.Apply(a.injector); err != nil {
			return fmt.Errorf("faults[%d]: %w", i, err)
		}
		a.applied = append(a.applied, appliedFault{class: spec.Class, pattern: spec.Pattern})
	}

	return nil
}

// Reset removes every fault registered by the last applied plan.
func (a *Applier) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, prev := range a.applied {
		a.injector.RemoveFault(prev.class, prev.pattern)
	}
	a.applied = a.applied[:0]
}
