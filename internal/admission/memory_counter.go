package admission

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter is a process-local Counter for single-instance runs.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry := m.entries[key]
	if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
		entry = memoryEntry{}
	}
	entry.count++
	entry.expiresAt = now.Add(ttl)
	m.entries[key] = entry

	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	return entry.count, nil
}
