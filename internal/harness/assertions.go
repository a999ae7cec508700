package harness

import (
	"context"
	"fmt"

	"github.com/tvarstm/stm"
	"github.com/tvarstm/stm/internal/jsonval"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	ID       string
	Path     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("assertion failed: %s[%s]: expected %s, got %s", e.ID, e.Path, e.Expected, e.Actual)
	}
	return fmt.Sprintf("assertion failed: %s: expected %s, got %s", e.ID, e.Expected, e.Actual)
}

// EvaluateAssertions reads store's committed state for each assertion and
// compares it against Equals. Returns one error message per failed
// assertion; a nil slice means every assertion held.
func EvaluateAssertions(ctx context.Context, store *stm.Store, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		if err := evaluateOne(ctx, store, assertion); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	return errs
}

func evaluateOne(ctx context.Context, store *stm.Store, assertion Assertion) error {
	want, err := jsonval.FromGo(assertion.Equals)
	if err != nil {
		return fmt.Errorf("assertions[%s]: invalid equals value: %w", assertion.ID, err)
	}

	got, err := stm.Atomically(ctx, store, func(tx *stm.Tx) (stm.Value, error) {
		if assertion.Path != "" {
			return tx.ReadTVarPath(assertion.ID, assertion.Path)
		}
		return tx.ReadTVar(assertion.ID)
	})
	if err != nil {
		return fmt.Errorf("read %q: %w", assertion.ID, err)
	}

	if !jsonval.Equal(want, got) {
		return &AssertionError{
			ID:       assertion.ID,
			Path:     assertion.Path,
			Expected: jsonString(want),
			Actual:   jsonString(got),
		}
	}

	return nil
}

func jsonString(v jsonval.Value) string {
	b, err := jsonval.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<unmarshalable: %v>", err)
	}
	return string(b)
}
