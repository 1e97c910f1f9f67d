package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(ctx, "item-1")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Errorf("expected at most 1 holder, got %d", maxSeen.Load())
	}
	if len(locker.locks) != 0 {
		t.Errorf("expected lock table to drain, got %d entries", len(locker.locks))
	}
}

func TestMemoryLocker_DifferentKeysDoNotBlock(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	unlockA, err := locker.Lock(ctx, "item-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer unlockA()

	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := locker.Lock(ctx, "item-b")
	if err != nil {
		t.Fatalf("expected item-b to lock while item-a is held, got %v", err)
	}
	unlockB()
}

func TestMemoryLocker_ContextCancel(t *testing.T) {
	locker := NewMemoryLocker()

	unlock, _ := locker.Lock(context.Background(), "item-1")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := locker.Lock(ctx, "item-1"); err == nil {
		t.Fatal("expected timeout while lock is held")
	}

	unlock()
	unlock() // second call is a no-op

	again, err := locker.Lock(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	again()
}

func TestMemoryIdempotency_ClaimAndRelease(t *testing.T) {
	store := NewMemoryIdempotency()
	ctx := context.Background()

	ok, _ := store.Claim(ctx, "req-1")
	if !ok {
		t.Error("expected first claim to succeed")
	}
	ok, _ = store.Claim(ctx, "req-1")
	if ok {
		t.Error("expected duplicate claim to fail")
	}

	store.Release(ctx, "req-1")
	ok, _ = store.Claim(ctx, "req-1")
	if !ok {
		t.Error("expected claim after release to succeed")
	}
}

func TestMemoryIdempotency_Expires(t *testing.T) {
	store := NewMemoryIdempotency()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	store.Claim(ctx, "req-1")
	now = now.Add(idempotencyKeyTTL + time.Second)

	ok, _ := store.Claim(ctx, "req-1")
	if !ok {
		t.Error("expected claim after TTL to succeed")
	}
}
