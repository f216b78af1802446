package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
// A scenario mutates a record graph step by step and checks derived values
// along the way, then asserts on the journaled engine trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Bundle selects the models and compute functions. Defaults to
	// "messaging".
	Bundle string `yaml:"bundle,omitempty"`

	// Policy is "lazy" (default) or "eager".
	Policy string `yaml:"policy,omitempty"`

	// MaxSteps overrides the per-settle step quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Steps run in order. Each step holds exactly one action.
	Steps []Step `yaml:"steps"`

	// Assertions validate the journaled trace after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Error, when set, declares that the action
// must fail with a message containing it.
type Step struct {
	Create *CreateStep `yaml:"create,omitempty"`
	Set    *SetStep    `yaml:"set,omitempty"`
	Add    *MemberStep `yaml:"add,omitempty"`
	Remove *MemberStep `yaml:"remove,omitempty"`
	Delete *RecordRef  `yaml:"delete,omitempty"`
	Settle bool        `yaml:"settle,omitempty"`
	Expect *ExpectStep `yaml:"expect,omitempty"`

	Error string `yaml:"error,omitempty"`
}

// RecordRef names a record by type and id.
type RecordRef struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
}

func (r RecordRef) String() string {
	return r.Type + ":" + r.ID
}

// CreateStep creates a record. Relationship fields take record ids.
type CreateStep struct {
	Type   string         `yaml:"type"`
	ID     string         `yaml:"id,omitempty"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// SetStep writes one field.
type SetStep struct {
	RecordRef `yaml:",inline"`
	Field     string `yaml:"field"`
	Value     any    `yaml:"value"`
}

// MemberStep adds or removes one member of a has-many relationship.
type MemberStep struct {
	RecordRef `yaml:",inline"`
	Field     string `yaml:"field"`
	Member    string `yaml:"member"`
}

// ExpectStep reads a path from a record and compares it with Equals.
// Records are compared by id, collections of records as id arrays and
// maps of records as id → id objects.
type ExpectStep struct {
	RecordRef `yaml:",inline"`
	Path      string `yaml:"path"`
	Equals    any    `yaml:"equals,omitempty"`
}

// Assertion validates the journaled trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event with Kind and Slot exists
	// - "trace_order": Events appear in order (not necessarily adjacent)
	// - "trace_count": exactly Count events match Kind and Slot
	// - "no_stale_reads": no stale-read diagnostics were raised
	Type string `yaml:"type"`

	// Kind is the engine event kind (used by trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Slot is "type:id.field" or "type:id" (used by trace_contains,
	// trace_count). Empty matches any slot.
	Slot string `yaml:"slot,omitempty"`

	// Count is the expected number of occurrences (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected event order (used by trace_order).
	Events []EventMatch `yaml:"events,omitempty"`
}

// EventMatch selects trace events by kind and slot.
type EventMatch struct {
	Kind string `yaml:"kind"`
	Slot string `yaml:"slot,omitempty"`
}

func (m EventMatch) String() string {
	if m.Slot == "" {
		return m.Kind
	}
	return m.Kind + " " + m.Slot
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertNoStaleReads  = "no_stale_reads"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch s.Policy {
	case "", "lazy", "eager":
	default:
		return fmt.Errorf("unknown policy %q (want lazy or eager)", s.Policy)
	}

	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step holds exactly one well-formed action.
func validateStep(index int, st *Step) error {
	actions := 0
	for _, set := range []bool{st.Create != nil, st.Set != nil, st.Add != nil, st.Remove != nil, st.Delete != nil, st.Settle, st.Expect != nil} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, actions)
	}

	switch {
	case st.Create != nil:
		if st.Create.Type == "" {
			return fmt.Errorf("steps[%d].create: type is required", index)
		}
	case st.Set != nil:
		if err := validateRef(index, "set", st.Set.RecordRef); err != nil {
			return err
		}
		if st.Set.Field == "" {
			return fmt.Errorf("steps[%d].set: field is required", index)
		}
	case st.Add != nil:
		return validateMember(index, "add", st.Add)
	case st.Remove != nil:
		return validateMember(index, "remove", st.Remove)
	case st.Delete != nil:
		return validateRef(index, "delete", *st.Delete)
	case st.Expect != nil:
		if err := validateRef(index, "expect", st.Expect.RecordRef); err != nil {
			return err
		}
		if st.Expect.Path == "" {
			return fmt.Errorf("steps[%d].expect: path is required", index)
		}
	}
	return nil
}

func validateRef(index int, action string, ref RecordRef) error {
	if ref.Type == "" {
		return fmt.Errorf("steps[%d].%s: type is required", index, action)
	}
	if ref.ID == "" {
		return fmt.Errorf("steps[%d].%s: id is required", index, action)
	}
	return nil
}

func validateMember(index int, action string, m *MemberStep) error {
	if err := validateRef(index, action, m.RecordRef); err != nil {
		return err
	}
	if m.Field == "" {
		return fmt.Errorf("steps[%d].%s: field is required", index, action)
	}
	if m.Member == "" {
		return fmt.Errorf("steps[%d].%s: member is required", index, action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for j, ev := range a.Events {
			if ev.Kind == "" {
				return fmt.Errorf("assertions[%d].events[%d]: kind is required", index, j)
			}
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertNoStaleReads:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
