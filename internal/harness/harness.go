// Package harness provides a conformance testing framework for the STM
// engine: it runs a Scenario's steps inside real atomically closures
// against a real *stm.Store, so the seed scenarios (spec §8, S1-S6) are
// executed end-to-end rather than merely asserted on paper.
//
// Unlike the teacher's MVP harness (which wrote invocations/completions
// directly to the store and manufactured completions from expect
// clauses, its own documented "Tautology Risk"), this harness drives
// the public stm.Atomically API for real: every Step runs as an actual
// transactional read or write, every retry is a real conflict-driven
// retry, and assertions read the Store's committed state afterward.
package harness

import (
	"context"
	"fmt"

	"github.com/tvarstm/stm"
	"github.com/tvarstm/stm/internal/jsonval"
)

// Result is the outcome of running a Scenario's Steps Repeat times.
type Result struct {
	ScenarioName string
	Attempts     []error
	FinalError   error
}

// Committed reports whether every repetition committed without error.
func (r *Result) Committed() bool {
	for _, err := range r.Attempts {
		if err != nil {
			return false
		}
	}
	return true
}

// ThrownError is returned by the closure when a scenario sets Throw,
// so Atomically aborts that attempt without committing (S4).
type ThrownError struct {
	Scenario string
}

func (e *ThrownError) Error() string {
	return fmt.Sprintf("harness: scenario %q closure threw", e.Scenario)
}

// Run seeds store with scenario's Setup TVars, then runs scenario's
// Steps inside a single atomically closure, repeated scenario.Repeat
// times (default 1). Assertions are left for the caller to evaluate
// against store's final state; Run only reports per-repetition errors.
func Run(ctx context.Context, store *stm.Store, scenario *Scenario) (*Result, error) {
	for id, initial := range scenario.Setup {
		if err := store.NewTVar(ctx, id, initial); err != nil {
			return nil, fmt.Errorf("harness: setup %q: %w", id, err)
		}
	}

	repeat := scenario.Repeat
	if repeat == 0 {
		repeat = 1
	}

	result := &Result{ScenarioName: scenario.Name}
	for i := 0; i < repeat; i++ {
		_, err := stm.Atomically(ctx, store, func(tx *stm.Tx) (any, error) {
			for j, step := range scenario.Steps {
				if err := applyStep(tx, step); err != nil {
					return nil, fmt.Errorf("steps[%d] (%s %s): %w", j, step.Op, step.ID, err)
				}
			}
			if scenario.Throw {
				return nil, &ThrownError{Scenario: scenario.Name}
			}
			return nil, nil
		})
		result.Attempts = append(result.Attempts, err)
		result.FinalError = err
	}
	return result, nil
}

func applyStep(tx *stm.Tx, step Step) error {
	switch step.Op {
	case OpRead:
		_, err := tx.ReadTVar(step.ID)
		return err
	case OpWrite:
		return tx.WriteTVar(step.ID, step.Value)
	case OpReadPath:
		_, err := tx.ReadTVarPath(step.ID, step.Path)
		return err
	case OpUpdatePath:
		return tx.UpdateTVarPath(step.ID, step.Path, step.Value)
	case OpIncrement:
		cur, err := tx.ReadTVar(step.ID)
		if err != nil {
			return err
		}
		n, ok := cur.(jsonval.Number).Int64()
		if !ok {
			return fmt.Errorf("increment: %q is not an integer", step.ID)
		}
		return tx.WriteTVar(step.ID, n+step.Delta)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}
