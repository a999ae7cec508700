package kvstore

import (
	"context"
	"sort"
	"sync"

	"github.com/tvarstm/stm/internal/jsonval"
)

// MemoryBackend is the "simple in-memory map guarded by a mutex with
// per-record version counters" backend spec §6 explicitly allows as a
// conforming alternative to a SQL engine. It is used for the ephemeral
// Store.Open option and in unit tests that don't need durability.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]memRecord
}

type memRecord struct {
	value   jsonval.Value
	version int64
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]memRecord)}
}

// Close implements Backend; the in-memory backend holds no external
// resources.
func (m *MemoryBackend) Close() error { return nil }

// Insert implements Backend.
func (m *MemoryBackend) Insert(_ context.Context, id string, value jsonval.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; exists {
		return &AlreadyExistsError{ID: id}
	}
	m.records[id] = memRecord{value: jsonval.Clone(value), version: 0}
	return nil
}

// ListIDs implements Backend.
func (m *MemoryBackend) ListIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// SelectVersion implements Session.
func (m *MemoryBackend) SelectVersion(_ context.Context, id string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return 0, false, nil
	}
	return rec.version, true, nil
}

// SelectValueVersion implements Session.
func (m *MemoryBackend) SelectValueVersion(_ context.Context, id string) (jsonval.Value, int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, 0, false, nil
	}
	return jsonval.Clone(rec.value), rec.version, true, nil
}

// CASUpdate implements Session.
func (m *MemoryBackend) CASUpdate(_ context.Context, id string, newValue jsonval.Value, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok || rec.version != expectedVersion {
		return false, nil
	}
	m.records[id] = memRecord{value: jsonval.Clone(newValue), version: rec.version + 1}
	return true, nil
}

// WithExclusive implements Backend. The mutex already serializes every
// operation on this backend, so the exclusive bracket holds the lock for
// the whole callback — the in-process analogue of the SQLite backend's
// single-connection serialization. The record map is copied before fn
// runs and restored if fn returns an error, so a failed bracket leaves
// no partial writes behind.
func (m *MemoryBackend) WithExclusive(ctx context.Context, fn func(Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := make(map[string]memRecord, len(m.records))
	for id, rec := range m.records {
		saved[id] = rec
	}
	if err := fn(&memorySession{backend: m}); err != nil {
		m.records = saved
		return err
	}
	return nil
}

// memorySession implements Session reentrantly against a MemoryBackend
// whose mutex is already held by the enclosing WithExclusive call.
type memorySession struct {
	backend *MemoryBackend
}

func (s *memorySession) SelectVersion(_ context.Context, id string) (int64, bool, error) {
	rec, ok := s.backend.records[id]
	if !ok {
		return 0, false, nil
	}
	return rec.version, true, nil
}

func (s *memorySession) SelectValueVersion(_ context.Context, id string) (jsonval.Value, int64, bool, error) {
	rec, ok := s.backend.records[id]
	if !ok {
		return nil, 0, false, nil
	}
	return jsonval.Clone(rec.value), rec.version, true, nil
}

func (s *memorySession) CASUpdate(_ context.Context, id string, newValue jsonval.Value, expectedVersion int64) (bool, error) {
	rec, ok := s.backend.records[id]
	if !ok || rec.version != expectedVersion {
		return false, nil
	}
	s.backend.records[id] = memRecord{value: jsonval.Clone(newValue), version: rec.version + 1}
	return true, nil
}
