package session

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often a store built by the gate purges expired
// sessions.
const DefaultSweepInterval = time.Minute

type memoryEntry struct {
	values    map[string][]byte
	expiresAt time.Time
}

// MemoryStore is an in-process [Store] with the same sliding TTL semantics as
// [RedisStore]. Data does not survive a restart and is not shared between processes.
//
// Expired sessions are dropped when touched. Sessions that are never touched
// again stay resident until [MemoryStore.Sweep] runs, so long-lived stores
// should run [MemoryStore.StartSweeper].
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl < minSlidingTTL {
		ttl = minSlidingTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) live(sessionID string) *memoryEntry {
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.sessions, sessionID)
		return nil
	}
	return entry
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) ([]byte, error) {
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(sessionID)
	if entry == nil {
		return nil, ErrNotFound
	}
	value, ok := entry.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key string, value []byte) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.live(sessionID)
	if entry == nil {
		entry = &memoryEntry{values: make(map[string][]byte)}
		s.sessions[sessionID] = entry
	}
	entry.values[key] = append([]byte(nil), value...)
	entry.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID, key string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry := s.live(sessionID); entry != nil {
		delete(entry.values, key)
	}
	return nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidSessionID
	}
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.sessions {
		if s.live(id) != nil {
			n++
		}
	}
	return n
}

// Sweep removes every expired session and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if !now.Before(entry.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper calls Sweep every interval on its own goroutine. The returned
// func stops it and waits for the goroutine to exit; calling it again is a no-op.
func (s *MemoryStore) StartSweeper(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-exited
		})
	}
}
