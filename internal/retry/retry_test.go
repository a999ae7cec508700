package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper captures the sequence of sleeps instead of blocking,
// so backoff cadence can be asserted without a slow test.
type recordingSleeper struct {
	sleeps []time.Duration
}

func (r *recordingSleeper) Sleep(d time.Duration) {
	r.sleeps = append(r.sleeps, d)
}

func TestRecordConflictRetriesBelowLimit(t *testing.T) {
	d := New(WithSleeper(&recordingSleeper{}))

	for i := 0; i < 5; i++ {
		err := d.RecordConflict()
		require.NoError(t, err)
	}
	assert.Equal(t, 5, d.Attempts())
}

func TestRecordConflictFailsAtMaxAttempts(t *testing.T) {
	d := New(WithMaxAttempts(3), WithSleeper(&recordingSleeper{}))

	require.NoError(t, d.RecordConflict())
	require.NoError(t, d.RecordConflict())

	err := d.RecordConflict()
	require.Error(t, err)
	assert.True(t, IsMaxRetriesExceeded(err))

	var target *MaxRetriesExceededError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, 3, target.Attempts)
	assert.Equal(t, 3, target.Limit)
}

func TestBackoffOnlyFiresEveryTenthAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	d := New(WithMaxAttempts(1000), WithSleeper(sleeper))

	for i := 0; i < 9; i++ {
		require.NoError(t, d.RecordConflict())
	}
	assert.Empty(t, sleeper.sleeps, "no backoff before the 10th attempt")

	require.NoError(t, d.RecordConflict())
	require.Len(t, sleeper.sleeps, 1)
	assert.Equal(t, 2*time.Millisecond, sleeper.sleeps[0])
}

func TestBackoffIsCappedAt100Millis(t *testing.T) {
	sleeper := &recordingSleeper{}
	d := New(WithMaxAttempts(1000), WithSleeper(sleeper))

	for i := 0; i < 100; i++ {
		require.NoError(t, d.RecordConflict())
	}
	require.NotEmpty(t, sleeper.sleeps)
	last := sleeper.sleeps[len(sleeper.sleeps)-1]
	assert.Equal(t, 100*time.Millisecond, last)
}

func TestFixedAttemptIDsYieldInOrderThenPanic(t *testing.T) {
	gen := NewFixedAttemptIDs("a1", "a2")
	assert.Equal(t, "a1", gen.Generate())
	assert.Equal(t, "a2", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestUUIDv7AttemptIDsAreUnique(t *testing.T) {
	gen := UUIDv7AttemptIDs{}
	first := gen.Generate()
	second := gen.Generate()
	assert.NotEqual(t, first, second)
}
