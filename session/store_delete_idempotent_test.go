package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(rdb, "gg:", time.Hour)
	return store, mr, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestRedisStoreRecordRoundTrip(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if _, err := LoadRecord(ctx, store, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}

	rec := testRecord()
	if err := SaveRecord(ctx, store, "sid-1", rec); err != nil {
		t.Fatalf("save record: %v", err)
	}
	got, err := LoadRecord(ctx, store, "sid-1")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestRedisStoreUsesOneHashPerSession(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := SaveRecord(ctx, store, "sid-1", testRecord()); err != nil {
		t.Fatalf("save record: %v", err)
	}
	if err := SaveRedirectPath(ctx, store, "sid-1", "/dashboard"); err != nil {
		t.Fatalf("save redirect: %v", err)
	}

	keys, err := mr.HKeys("gg:sid-1")
	if err != nil {
		t.Fatalf("hkeys: %v", err)
	}
	if diff := cmp.Diff([]string{KeyAuth, KeyRedirectPath}, keys); diff != "" {
		t.Fatalf("hash fields mismatch (-want +got):\n%s", diff)
	}
	if ttl := mr.TTL("gg:sid-1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected sliding ttl <= 1h, got %v", ttl)
	}
}

func TestRedisStoreTTLExpiresSession(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := SaveRecord(ctx, store, "sid-1", testRecord()); err != nil {
		t.Fatalf("save record: %v", err)
	}
	mr.FastForward(2 * time.Hour)

	if _, err := LoadRecord(ctx, store, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after ttl, got %v", err)
	}
}

func TestClearAndDeleteAllIdempotent(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := SaveRecord(ctx, store, "sid-1", testRecord()); err != nil {
		t.Fatalf("save record: %v", err)
	}
	if err := SaveRedirectPath(ctx, store, "sid-1", "/x"); err != nil {
		t.Fatalf("save redirect: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := ClearRecord(ctx, store, "sid-1"); err != nil {
			t.Fatalf("clear #%d: %v", i, err)
		}
	}
	if _, err := LoadRecord(ctx, store, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected auth cleared, got %v", err)
	}
	if !mr.Exists("gg:sid-1") {
		t.Fatal("clearing auth must not drop other keys")
	}

	for i := 0; i < 2; i++ {
		if err := store.DeleteAll(ctx, "sid-1"); err != nil {
			t.Fatalf("delete all #%d: %v", i, err)
		}
	}
	if mr.Exists("gg:sid-1") {
		t.Fatal("expected session hash removed")
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, _, done := newSessionStoreTest(t)
	defer done()
	mr.Close()

	if _, err := store.Get(context.Background(), "sid-1", KeyAuth); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Set(context.Background(), "sid-1", KeyAuth, []byte("x")); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on set, got %v", err)
	}
}

func TestStoreRejectsEmptySessionID(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()

	if _, err := store.Get(context.Background(), "", KeyAuth); !errors.Is(err, ErrInvalidSessionID) {
		t.Fatalf("expected ErrInvalidSessionID, got %v", err)
	}
}

func TestRedirectPathTakenOnce(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	got, err := TakeRedirectPath(ctx, store, "sid-1")
	if err != nil || got != DefaultRedirectPath {
		t.Fatalf("expected default path, got %q err=%v", got, err)
	}
	if err := SaveRedirectPath(ctx, store, "sid-1", "/dashboard?tab=2"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = TakeRedirectPath(ctx, store, "sid-1")
	if err != nil || got != "/dashboard?tab=2" {
		t.Fatalf("expected saved path, got %q err=%v", got, err)
	}
	got, _ = TakeRedirectPath(ctx, store, "sid-1")
	if got != DefaultRedirectPath {
		t.Fatalf("redirect path must be cleared after read, got %q", got)
	}
}

func TestLoginStateTakenOnce(t *testing.T) {
	store, _, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	state := LoginState{State: "s1", Verifier: "v1", ReturnPath: "/x", CreatedAt: time.Unix(100, 0).UTC()}
	if err := SaveLoginState(ctx, store, "sid-1", state); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := TakeLoginState(ctx, store, "sid-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if diff := cmp.Diff(state, got); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}
	if _, err := TakeLoginState(ctx, store, "sid-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second take, got %v", err)
	}
}
