package viewstate

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	fields    map[string][]byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store. Entries expire ttl after their last write.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore builds an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, id, field string, value []byte) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	entry, ok := s.entries[id]
	if !ok || now.After(entry.expiresAt) {
		entry = &memoryEntry{fields: make(map[string][]byte)}
		s.entries[id] = entry
	}
	entry.fields[field] = append([]byte(nil), value...)
	entry.expiresAt = now.Add(s.ttl)
	return nil
}

func (s *MemoryStore) All(ctx context.Context, id string) (map[string][]byte, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]byte)
	entry, ok := s.entries[id]
	if !ok {
		return out, nil
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, id)
		return out, nil
	}
	for k, v := range entry.fields {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

// StartSweeper drops expired entries every interval until ctx is done.
func (s *MemoryStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.ttl
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}
