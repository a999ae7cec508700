package stm

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tvarstm/stm/internal/jsonval"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Options{Backend: Ephemeral})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// S1: Single-writer increment.
func TestScenarioSingleWriterIncrement(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "c", 0))

	for i := 0; i < 10; i++ {
		_, err := Atomically(ctx, store, func(tx *Tx) (any, error) {
			cur, err := tx.ReadTVar("c")
			if err != nil {
				return nil, err
			}
			n, _ := cur.(jsonval.Number).Int64()
			return nil, tx.WriteTVar("c", n+1)
		})
		require.NoError(t, err)
	}

	final, err := readCurrent(t, ctx, store, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(10), final)
}

// S2: Concurrent increments, no lost updates.
func TestScenarioConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "c", 0))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle := store.NewHandle()
			_, err := Atomically(ctx, handle, func(tx *Tx) (any, error) {
				cur, err := tx.ReadTVar("c")
				if err != nil {
					return nil, err
				}
				n, _ := cur.(jsonval.Number).Int64()
				return nil, tx.WriteTVar("c", n+1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := readCurrent(t, ctx, store, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(10), final)
}

// S3: Transfer with paths.
func TestScenarioTransferWithPaths(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "u", map[string]any{
		"alice": map[string]any{"balance": 100, "txs": []any{}},
		"bob":   map[string]any{"balance": 50, "txs": []any{}},
	}))

	_, err := Atomically(ctx, store, func(tx *Tx) (any, error) {
		if _, err := tx.ReadTVarPath("u", "alice.balance"); err != nil {
			return nil, err
		}
		if _, err := tx.ReadTVarPath("u", "bob.balance"); err != nil {
			return nil, err
		}
		if err := tx.UpdateTVarPath("u", "alice.balance", 70); err != nil {
			return nil, err
		}
		if err := tx.UpdateTVarPath("u", "bob.balance", 80); err != nil {
			return nil, err
		}
		if err := tx.UpdateTVarPath("u", "alice.txs", []any{"sent 30"}); err != nil {
			return nil, err
		}
		return nil, tx.UpdateTVarPath("u", "bob.txs", []any{"got 30"})
	})
	require.NoError(t, err)

	_, err = Atomically(ctx, store, func(tx *Tx) (any, error) {
		alicesTxs, err := tx.ReadTVarPath("u", "alice.txs")
		if err != nil {
			return nil, err
		}
		assert.Len(t, ToGo(alicesTxs), 1)
		return nil, nil
	})
	require.NoError(t, err)
}

// S4: Rollback on throw.
func TestScenarioRollbackOnThrow(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "c", 0))

	sentinel := assert.AnError
	_, err := Atomically(ctx, store, func(tx *Tx) (any, error) {
		if err := tx.WriteTVar("c", 1); err != nil {
			return nil, err
		}
		return nil, sentinel
	})
	require.ErrorIs(t, err, sentinel)

	final, err := readCurrent(t, ctx, store, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(0), final)
}

// S5: Conflict retry convergence.
func TestScenarioConflictRetryConvergence(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "c", 0))

	const perWorker = 100
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handle := store.NewHandle()
			for i := 0; i < perWorker; i++ {
				_, err := Atomically(ctx, handle, func(tx *Tx) (any, error) {
					cur, err := tx.ReadTVar("c")
					if err != nil {
						return nil, err
					}
					n, _ := cur.(jsonval.Number).Int64()
					return nil, tx.WriteTVar("c", n+1)
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	final, err := readCurrent(t, ctx, store, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(200), final)
}

// S6: Path on array.
func TestScenarioPathOnArray(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "xs", []any{"A", "B", "C"}))

	_, err := Atomically(ctx, store, func(tx *Tx) (any, error) {
		v, err := tx.ReadTVarPath("xs", "[1]")
		if err != nil {
			return nil, err
		}
		assert.Equal(t, "B", ToGo(v))
		return nil, tx.UpdateTVarPath("xs", "[1]", "BB")
	})
	require.NoError(t, err)

	_, err = Atomically(ctx, store, func(tx *Tx) (any, error) {
		v, err := tx.ReadTVar("xs")
		if err != nil {
			return nil, err
		}
		assert.Equal(t, []any{"A", "BB", "C"}, ToGo(v))
		return nil, nil
	})
	require.NoError(t, err)
}

func TestNewTVarAlreadyExists(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "x", 1))

	err := store.NewTVar(ctx, "x", 2)
	require.Error(t, err)
	var already *AlreadyExistsError
	require.ErrorAs(t, err, &already)
}

func TestReadTVarNotFound(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := Atomically(ctx, store, func(tx *Tx) (any, error) {
		return tx.ReadTVar("missing")
	})
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestHandleIDSharesEphemeralState(t *testing.T) {
	ctx := context.Background()
	a, err := Open(Options{Backend: Ephemeral, HandleID: 42})
	require.NoError(t, err)
	b, err := Open(Options{Backend: Ephemeral, HandleID: 42})
	require.NoError(t, err)

	require.NoError(t, a.NewTVar(ctx, "shared", 1))

	final, err := readCurrent(t, ctx, b, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(1), final)
}

func TestReentrantAtomicallyCommitsIndependently(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.NewTVar(ctx, "outer", 0))
	require.NoError(t, store.NewTVar(ctx, "inner", 0))

	_, err := Atomically(ctx, store, func(tx *Tx) (any, error) {
		if err := tx.WriteTVar("outer", 1); err != nil {
			return nil, err
		}
		// Nested call on the same *Store from inside the closure: it
		// commits independently of the outer attempt, and neither call
		// deadlocks, since no write lock is held while a closure runs.
		_, innerErr := Atomically(ctx, store, func(innerTx *Tx) (any, error) {
			return nil, innerTx.WriteTVar("inner", 1)
		})
		return nil, innerErr
	})
	require.NoError(t, err)

	innerFinal, err := readCurrent(t, ctx, store, "inner")
	require.NoError(t, err)
	assert.Equal(t, int64(1), innerFinal)

	outerFinal, err := readCurrent(t, ctx, store, "outer")
	require.NoError(t, err)
	assert.Equal(t, int64(1), outerFinal)
}

func readCurrent(t *testing.T, ctx context.Context, store *Store, id string) (int64, error) {
	t.Helper()
	result, err := Atomically(ctx, store, func(tx *Tx) (int64, error) {
		v, err := tx.ReadTVar(id)
		if err != nil {
			return 0, err
		}
		n, _ := v.(jsonval.Number).Int64()
		return n, nil
	})
	return result, err
}
