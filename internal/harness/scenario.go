// Package harness loads YAML-defined transaction scenarios (the seed
// tests S1-S6 from spec §8) and runs them against a real *stm.Store, so
// the properties in spec §8 are exercised as runnable tests rather than
// only asserted ad hoc. Adapted from the teacher's
// internal/harness/scenario.go, which loads YAML-defined conformance
// scenarios (setup/flow/assertions) with strict-field YAML parsing; here
// "flow" becomes a sequence of TVar operations run inside one
// atomically closure, and "final_state" assertions read TVars directly
// instead of querying a sync-rule state table.
package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario describes one transaction scenario: TVars to seed, the
// sequence of operations to run inside a single atomically closure
// (repeated Repeat times), and assertions on the final Store state.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Setup       map[string]any `yaml:"setup"`
	Steps       []Step         `yaml:"steps"`

	// Repeat runs the Steps sequence as this many independent
	// atomically calls in sequence (S1: ten sequential increments).
	// Defaults to 1.
	Repeat int `yaml:"repeat,omitempty"`

	// Throw, if true, makes the closure return an error after running
	// Steps, so the attempt aborts without committing (S4).
	Throw bool `yaml:"throw,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation performed inside a scenario's transaction.
type Step struct {
	// Op is one of: "read", "write", "read_path", "update_path",
	// "increment" (read_tvar then write_tvar(value + Delta)).
	Op    string `yaml:"op"`
	ID    string `yaml:"id"`
	Path  string `yaml:"path,omitempty"`
	Value any    `yaml:"value,omitempty"`
	Delta int64  `yaml:"delta,omitempty"`
}

// Assertion checks a TVar's (or TVar path's) final value.
type Assertion struct {
	ID     string `yaml:"id"`
	Path   string `yaml:"path,omitempty"`
	Equals any    `yaml:"equals"`
}

// Step op constants.
const (
	OpRead       = "read"
	OpWrite      = "write"
	OpReadPath   = "read_path"
	OpUpdatePath = "update_path"
	OpIncrement  = "increment"
)

// LoadScenario reads and strictly parses a scenario YAML file, catching
// field-name typos the way the teacher's LoadScenario does via
// yaml.Decoder.KnownFields(true).
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML already in memory.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("harness: parse scenario YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("harness: invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps must be non-empty")
	}
	for i, step := range s.Steps {
		switch step.Op {
		case OpRead, OpWrite, OpReadPath, OpUpdatePath, OpIncrement:
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required", i)
		}
	}
	return nil
}
