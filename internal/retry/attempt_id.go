package retry

import (
	"sync"

	"github.com/google/uuid"
)

// AttemptIDGenerator produces an identifier correlating one attempt of
// a transaction (one pass through the retry loop) across logs. This is
// directly grounded on the teacher's engine.UUIDv7Generator /
// engine.FixedGenerator pair (flow.go): a stateless real generator for
// production, and a deterministic fake for golden-output tests.
type AttemptIDGenerator interface {
	Generate() string
}

// UUIDv7AttemptIDs generates time-sortable UUIDv7 attempt ids, so log
// lines for the same transaction's successive attempts sort naturally.
type UUIDv7AttemptIDs struct{}

// Generate returns a new UUIDv7, panicking only if the platform's
// entropy source is broken (should never happen in practice).
func (UUIDv7AttemptIDs) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedAttemptIDs returns predetermined ids in order, for deterministic
// tests.
type FixedAttemptIDs struct {
	mu   sync.Mutex
	ids  []string
	next int
}

// NewFixedAttemptIDs builds a generator that yields ids in the given
// order, then panics once exhausted (fail fast on test
// misconfiguration rather than silently repeating an id).
func NewFixedAttemptIDs(ids ...string) *FixedAttemptIDs {
	return &FixedAttemptIDs{ids: ids}
}

func (g *FixedAttemptIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next >= len(g.ids) {
		panic("retry: FixedAttemptIDs exhausted")
	}
	id := g.ids[g.next]
	g.next++
	return id
}
