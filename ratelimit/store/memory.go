package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count      uint64
	expiration time.Time
}

// Memory is an in-process fixed-window counter implementation of
// Store, used as the fallback when the Redis probe fails at startup.
// A fixed window is less accurate than the sliding window log: up to
// roughly twice the limit can be admitted across a window boundary.
// That is an accepted limitation of the fallback path.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
}

// NewMemory creates a new in-memory store with automatic cleanup of
// expired entries.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}

	go m.cleanup()
	return m
}

func (m *Memory) Check(_ context.Context, key string, limit uint64, window time.Duration) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry, exists := m.entries[key]

	if !exists || now.After(entry.expiration) {
		m.entries[key] = &memoryEntry{
			count:      1,
			expiration: now.Add(window),
		}
		return Decision{Allowed: true}, nil
	}

	if entry.count >= limit {
		return Decision{ResetAt: now.Add(window).Unix()}, nil
	}

	entry.count++
	// Each admitted event refreshes the window TTL, mirroring the
	// counter-with-TTL semantics of the primary backend's EXPIRE.
	entry.expiration = now.Add(window)
	return Decision{Allowed: true}, nil
}

func (m *Memory) Close() error {
	close(m.stopCh)
	return nil
}

func (m *Memory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			var expiredKeys []string

			m.mu.RLock()
			for key, entry := range m.entries {
				if now.After(entry.expiration) {
					expiredKeys = append(expiredKeys, key)
				}
			}
			m.mu.RUnlock()

			if len(expiredKeys) > 0 {
				m.mu.Lock()
				for _, key := range expiredKeys {
					delete(m.entries, key)
				}
				m.mu.Unlock()
			}
		case <-m.stopCh:
			return
		}
	}
}
