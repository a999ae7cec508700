package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvarstm/stm"
)

func openTestStore(t *testing.T) *stm.Store {
	t.Helper()
	s, err := stm.Open(stm.Options{Backend: stm.Ephemeral})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// S1: ten sequential increments converge on 10.
func TestRunSingleWriterIncrement(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	scenario, err := ParseScenario([]byte(`
name: single_writer_increment
setup:
  c: 0
steps:
  - op: increment
    id: c
    delta: 1
repeat: 10
assertions:
  - id: c
    equals: 10
`))
	require.NoError(t, err)

	result, err := Run(ctx, store, scenario)
	require.NoError(t, err)
	assert.True(t, result.Committed())
	assert.Len(t, result.Attempts, 10)

	failures := EvaluateAssertions(ctx, store, scenario.Assertions)
	assert.Empty(t, failures)
}

// S4: a scenario that throws aborts without committing.
func TestRunThrowAbortsWithoutCommit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	scenario, err := ParseScenario([]byte(`
name: rollback_on_throw
setup:
  c: 0
steps:
  - op: write
    id: c
    value: 1
throw: true
assertions:
  - id: c
    equals: 0
`))
	require.NoError(t, err)

	result, err := Run(ctx, store, scenario)
	require.NoError(t, err)
	assert.False(t, result.Committed())
	var thrown *ThrownError
	require.ErrorAs(t, result.FinalError, &thrown)

	failures := EvaluateAssertions(ctx, store, scenario.Assertions)
	assert.Empty(t, failures)
}

// S3: path updates inside one atomically closure, checked afterwards by
// path-level assertions.
func TestRunUpdatePathTransfer(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	scenario, err := ParseScenario([]byte(`
name: transfer_with_paths
setup:
  u:
    alice:
      balance: 100
    bob:
      balance: 50
steps:
  - op: update_path
    id: u
    path: alice.balance
    value: 70
  - op: update_path
    id: u
    path: bob.balance
    value: 80
assertions:
  - id: u
    path: alice.balance
    equals: 70
  - id: u
    path: bob.balance
    equals: 80
`))
	require.NoError(t, err)

	result, err := Run(ctx, store, scenario)
	require.NoError(t, err)
	assert.True(t, result.Committed())

	failures := EvaluateAssertions(ctx, store, scenario.Assertions)
	assert.Empty(t, failures)
}

func TestEvaluateAssertionsReportsMismatch(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "c", 5))

	failures := EvaluateAssertions(ctx, store, []Assertion{{ID: "c", Equals: 6}})
	require.Len(t, failures, 1)
}

func TestEvaluateAssertionsReportsMissingTVar(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	failures := EvaluateAssertions(ctx, store, []Assertion{{ID: "missing", Equals: 1}})
	require.Len(t, failures, 1)
}
