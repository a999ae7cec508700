package stm

import (
	"sync"

	"github.com/tvarstm/stm/internal/kvstore"
)

// handleRegistry lets multiple Ephemeral Store.Open calls sharing the
// same HandleID observe the same in-memory TVar set (spec §6: "Handles
// sharing the same handle_id share the same underlying TVar set").
// Persistent stores get this for free from the shared SQLite file, so
// no analogous registry exists for them.
type handleRegistry struct {
	mu       sync.Mutex
	backends map[int]*kvstore.MemoryBackend
}

func newHandleRegistry() *handleRegistry {
	return &handleRegistry{backends: make(map[int]*kvstore.MemoryBackend)}
}

func (r *handleRegistry) get(id int) *kvstore.MemoryBackend {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.backends[id]; ok {
		return b
	}
	b := kvstore.NewMemoryBackend()
	r.backends[id] = b
	return b
}
