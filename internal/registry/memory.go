package registry

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	rec      Record
	deadline time.Time
}

// MemoryRegistry keeps records in a mutex-guarded map. It does not
// survive restarts; meant for tests and single-process development.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]memEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (r *MemoryRegistry) Put(_ context.Context, id string, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = memEntry{rec: rec, deadline: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (Record, bool, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok || r.now().After(e.deadline) {
		return Record{}, false, nil
	}
	return e.rec, true, nil
}

func (r *MemoryRegistry) Ping(context.Context) error { return nil }
