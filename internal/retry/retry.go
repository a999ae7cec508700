// Package retry implements the Retry Driver (spec §4.6): it reruns a
// transaction attempt against Conflict, enforces a maximum attempt
// count, and backs off every 10th retry to damp livelock under
// contention.
//
// The counting and limit-check shape is grounded on the teacher's
// engine.QuotaEnforcer (quota.go): a small mutable counter checked
// before each unit of work, returning a typed error once a configured
// limit is crossed.
package retry

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxAttempts is MAX_ATTEMPTS from spec §4.6.
const DefaultMaxAttempts = 1000

// backoffCadence is how often (in attempts) the driver sleeps: "every
// 10th retry" per spec §4.6.
const backoffCadence = 10

// backoffCapMillis is the "min(100, ...)" cap from spec §4.6.
const backoffCapMillis = 100

// Sleeper abstracts the backoff's blocking sleep so tests can run the
// driver without actually waiting out exponential delays.
type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper sleeps for real; it is the default used outside tests.
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Driver tracks attempts for a single atomically(...) call and decides,
// on each Conflict, whether to retry (and how long to back off first)
// or to fail with MaxRetriesExceeded.
//
// A Driver is used for exactly one call to atomically; construct a
// fresh one per call via New.
type Driver struct {
	maxAttempts int
	attempts    int
	sleeper     Sleeper
}

// Option configures a Driver.
type Option func(*Driver)

// WithMaxAttempts overrides DefaultMaxAttempts. Exposed so callers can
// tune the "tunable constant" spec §9 calls out, without touching the
// retry loop itself.
func WithMaxAttempts(n int) Option {
	return func(d *Driver) { d.maxAttempts = n }
}

// WithSleeper overrides the backoff sleep primitive. Tests use this to
// replace RealSleeper with a no-op or recording fake.
func WithSleeper(s Sleeper) Option {
	return func(d *Driver) { d.sleeper = s }
}

// New constructs a Driver with DefaultMaxAttempts and a real sleeper,
// as modified by opts.
func New(opts ...Option) *Driver {
	d := &Driver{
		maxAttempts: DefaultMaxAttempts,
		sleeper:     RealSleeper{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Attempts returns the number of conflicts observed so far.
func (d *Driver) Attempts() int { return d.attempts }

// RecordConflict registers a Conflict outcome from the commit protocol.
// It returns MaxRetriesExceededError once the configured limit is
// reached; otherwise it sleeps out the backoff (if this attempt count
// falls on the cadence) and returns nil, meaning "retry".
func (d *Driver) RecordConflict() error {
	d.attempts++
	if d.attempts >= d.maxAttempts {
		return &MaxRetriesExceededError{Attempts: d.attempts, Limit: d.maxAttempts}
	}
	if delay := d.backoffFor(d.attempts); delay > 0 {
		d.sleeper.Sleep(delay)
	}
	return nil
}

// backoffFor returns the sleep duration for the given attempt count, or
// zero if this attempt doesn't land on the backoff cadence.
func (d *Driver) backoffFor(attempts int) time.Duration {
	if attempts%backoffCadence != 0 {
		return 0
	}
	millis := 1 << uint(attempts/backoffCadence)
	if millis > backoffCapMillis {
		millis = backoffCapMillis
	}
	return time.Duration(millis) * time.Millisecond
}

// MaxRetriesExceededError is returned when attempts reaches the
// configured limit without a successful commit (spec §4.6, §7).
type MaxRetriesExceededError struct {
	Attempts int
	Limit    int
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("stm: max retry attempts exceeded: %d attempts (limit %d)", e.Attempts, e.Limit)
}

// IsMaxRetriesExceeded reports whether err is (or wraps) a
// MaxRetriesExceededError.
func IsMaxRetriesExceeded(err error) bool {
	var target *MaxRetriesExceededError
	return errors.As(err, &target)
}
