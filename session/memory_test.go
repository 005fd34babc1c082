package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStoreSlidingTTL(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := SaveRecord(ctx, store, "sid-1", testRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}

	now = now.Add(50 * time.Minute)
	if err := SaveRedirectPath(ctx, store, "sid-1", "/a"); err != nil {
		t.Fatalf("save redirect: %v", err)
	}

	now = now.Add(50 * time.Minute)
	if _, err := LoadRecord(ctx, store, "sid-1"); err != nil {
		t.Fatalf("write should have renewed ttl: %v", err)
	}

	now = now.Add(61 * time.Minute)
	if _, err := LoadRecord(ctx, store, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired session evicted, have %d", store.Len())
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	value := []byte("abc")
	if err := store.Set(ctx, "sid", "k", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	value[0] = 'z'

	got, err := store.Get(ctx, "sid", "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("store aliased caller buffer: %q", got)
	}
}

func TestMemoryStoreClearKeepsOtherKeys(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	_ = SaveRecord(ctx, store, "sid", testRecord())
	_ = SaveRedirectPath(ctx, store, "sid", "/x")

	if err := ClearRecord(ctx, store, "sid"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := LoadRecord(ctx, store, "sid"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected auth cleared, got %v", err)
	}
	if path, _ := TakeRedirectPath(ctx, store, "sid"); path != "/x" {
		t.Fatalf("expected redirect path kept, got %q", path)
	}

	if err := store.DeleteAll(ctx, "sid"); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if err := store.DeleteAll(ctx, "sid"); err != nil {
		t.Fatalf("second delete all: %v", err)
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = SaveRecord(ctx, store, "sid", testRecord())
				_, _ = LoadRecord(ctx, store, "sid")
				_ = ClearRecord(ctx, store, "sid")
			}
		}()
	}
	wg.Wait()
}

func (s *MemoryStore) resident() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func TestMemoryStoreSweepRemovesUntouchedSessions(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for _, sid := range []string{"sid-1", "sid-2", "sid-3"} {
		if err := SaveRecord(ctx, store, sid, testRecord()); err != nil {
			t.Fatalf("save %s: %v", sid, err)
		}
	}
	now = now.Add(30 * time.Minute)
	if err := SaveRedirectPath(ctx, store, "sid-3", "/a"); err != nil {
		t.Fatalf("renew sid-3: %v", err)
	}

	now = now.Add(31 * time.Minute)
	if n := store.Sweep(); n != 2 {
		t.Fatalf("expected two expired sessions removed, got %d", n)
	}
	if n := store.resident(); n != 1 {
		t.Fatalf("expected one resident session, got %d", n)
	}
	if _, err := LoadRecord(ctx, store, "sid-3"); err != nil {
		t.Fatalf("renewed session must survive the sweep: %v", err)
	}
	if n := store.Sweep(); n != 0 {
		t.Fatalf("expected nothing left to sweep, got %d", n)
	}
}

func TestMemoryStoreSweeperRunsUntilStopped(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	var clock atomic.Int64
	clock.Store(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	store.now = func() time.Time { return time.Unix(0, clock.Load()) }

	if err := SaveRecord(context.Background(), store, "sid-1", testRecord()); err != nil {
		t.Fatalf("save: %v", err)
	}

	stop := store.StartSweeper(5 * time.Millisecond)
	defer stop()

	clock.Add(int64(2 * time.Hour))
	deadline := time.Now().Add(2 * time.Second)
	for store.resident() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not remove the expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}

	stop()
	stop()
}
