package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/derive/internal/ir"
)

// Snapshot captures what a scenario run observed.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string  `json:"scenario_name"`
	Checks       []Check `json:"checks"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	checks := make([]any, len(s.Checks))
	for i, c := range s.Checks {
		m := map[string]any{
			"step":   c.Step,
			"record": c.Record,
			"path":   c.Path,
			"pass":   c.Pass,
		}
		if c.Got != nil {
			m["got"] = c.Got
		}
		if c.Err != "" {
			m["error"] = c.Err
		}
		checks[i] = m
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"checks":        checks,
	}
}

// MarshalSnapshot renders a result's checks as canonical JSON.
func MarshalSnapshot(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: scenarioName, Checks: result.Checks}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the observed values against
// a golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
