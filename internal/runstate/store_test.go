package runstate

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(5 * time.Minute)

	if err := store.Put(ctx, "job:sync:running", "run-1", expiresAt); err != nil {
		t.Fatalf("Put: %v", err)
	}

	value, ok, err := store.Get(ctx, "job:sync:running")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get should find the key after Put")
	}
	if value != "run-1" {
		t.Errorf("value = %q, want %q", value, "run-1")
	}
}

func TestMemoryStore_Get_ReturnsFalseWhenMissing(t *testing.T) {
	store := NewMemoryStore()

	value, ok, err := store.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get should return false for a missing key")
	}
	if value != "" {
		t.Errorf("value = %q, want empty string", value)
	}
}

func TestMemoryStore_Get_ReturnsFalseWhenExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(-1 * time.Minute)

	store.Put(ctx, "job:sync:running", "run-1", expiresAt)

	_, ok, err := store.Get(ctx, "job:sync:running")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get should return false for an expired key")
	}

	// Expired entries are removed on read.
	_, ok, _ = store.Get(ctx, "job:sync:running")
	if ok {
		t.Error("Get should return false after cleanup")
	}
}

func TestMemoryStore_Put_Replaces(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(5 * time.Minute)

	store.Put(ctx, "job:sync:last_ran", "2026-03-01T05:00:00Z", expiresAt)
	store.Put(ctx, "job:sync:last_ran", "2026-03-02T05:00:00Z", expiresAt)

	value, ok, _ := store.Get(ctx, "job:sync:last_ran")
	if !ok || value != "2026-03-02T05:00:00Z" {
		t.Errorf("value = %q ok=%v, want latest write", value, ok)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(5 * time.Minute)

	store.Put(ctx, "job:sync:running", "run-1", expiresAt)
	if err := store.Delete(ctx, "job:sync:running"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	_, ok, _ := store.Get(ctx, "job:sync:running")
	if ok {
		t.Error("Get should return false after Delete")
	}

	// Deleting a missing key is not an error.
	if err := store.Delete(ctx, "job:sync:running"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestMemoryStore_AnyPresent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	present, err := store.AnyPresent(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("AnyPresent: %v", err)
	}
	if present {
		t.Error("AnyPresent should be false for an empty store")
	}

	store.Put(ctx, "b", "x", time.Now().UTC().Add(time.Minute))

	present, _ = store.AnyPresent(ctx, []string{"a", "b", "c"})
	if !present {
		t.Error("AnyPresent should be true when one key is set")
	}

	present, _ = store.AnyPresent(ctx, []string{"a", "c"})
	if present {
		t.Error("AnyPresent should be false when no listed key is set")
	}
}

func TestMemoryStore_AnyPresent_IgnoresExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Put(ctx, "a", "x", time.Now().UTC().Add(-time.Minute))

	present, err := store.AnyPresent(ctx, []string{"a"})
	if err != nil {
		t.Fatalf("AnyPresent: %v", err)
	}
	if present {
		t.Error("AnyPresent should ignore expired keys")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	expiresAt := time.Now().UTC().Add(5 * time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key-" + string(rune('0'+id))
			store.Put(ctx, key, "v", expiresAt)
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key-" + string(rune('0'+id))
			store.Get(ctx, key)
		}(i)
	}
	wg.Wait()
}
