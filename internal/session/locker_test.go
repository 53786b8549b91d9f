package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	locker, err := NewRedisLocker("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis locker: %v", err)
	}
	locker.poll = 5 * time.Millisecond
	return locker, s
}

func lockers(t *testing.T) map[string]Locker {
	redisLocker, _ := setupTestRedis(t)
	t.Cleanup(func() { redisLocker.Close() })
	return map[string]Locker{
		"memory": NewMemoryLocker(),
		"redis":  redisLocker,
	}
}

func TestLockerSerializesSameKey(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside int32
			var overlap atomic.Bool
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					unlock, err := locker.Lock(context.Background(), "sess-1")
					if err != nil {
						t.Errorf("Lock failed: %v", err)
						return
					}
					if atomic.AddInt32(&inside, 1) > 1 {
						overlap.Store(true)
					}
					time.Sleep(2 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					unlock()
				}()
			}
			wg.Wait()
			if overlap.Load() {
				t.Fatal("two holders inside the same session lock")
			}
		})
	}
}

func TestLockerDifferentKeysDoNotBlock(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlockA, err := locker.Lock(context.Background(), "sess-a")
			if err != nil {
				t.Fatalf("Lock a failed: %v", err)
			}
			defer unlockA()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			unlockB, err := locker.Lock(ctx, "sess-b")
			if err != nil {
				t.Fatalf("Lock b blocked behind a: %v", err)
			}
			unlockB()
		})
	}
}

func TestLockerHonoursContext(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := locker.Lock(context.Background(), "sess-held")
			if err != nil {
				t.Fatalf("Lock failed: %v", err)
			}
			defer unlock()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			if _, err := locker.Lock(ctx, "sess-held"); !errors.Is(err, ErrLockTimeout) {
				t.Fatalf("expected ErrLockTimeout, got %v", err)
			}
		})
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			unlock, err := locker.Lock(context.Background(), "sess-twice")
			if err != nil {
				t.Fatalf("Lock failed: %v", err)
			}
			unlock()
			unlock()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			again, err := locker.Lock(ctx, "sess-twice")
			if err != nil {
				t.Fatalf("relock failed: %v", err)
			}
			again()
		})
	}
}

func TestMemoryLockerDropsIdleSlots(t *testing.T) {
	locker := NewMemoryLocker()
	unlock, err := locker.Lock(context.Background(), "sess-x")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if locker.size() != 1 {
		t.Fatalf("expected one slot, got %d", locker.size())
	}
	unlock()
	if locker.size() != 0 {
		t.Fatalf("expected slot to be dropped, got %d", locker.size())
	}
}

func TestRedisLockerDoesNotReleaseForeignHold(t *testing.T) {
	locker, s := setupTestRedis(t)
	defer locker.Close()

	unlock, err := locker.Lock(context.Background(), "sess-stolen")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	// Simulate the hold expiring and another replica taking it.
	s.Set("session-lock:sess-stolen", "other-replica")
	unlock()

	got, err := s.Get("session-lock:sess-stolen")
	if err != nil || got != "other-replica" {
		t.Fatalf("foreign hold was released: value=%q err=%v", got, err)
	}
}

func TestRedisLockerExpires(t *testing.T) {
	locker, s := setupTestRedis(t)
	defer locker.Close()
	// A crashed holder never renews.
	locker.renew = time.Hour

	if _, err := locker.Lock(context.Background(), "sess-crash"); err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	s.FastForward(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := locker.Lock(ctx, "sess-crash")
	if err != nil {
		t.Fatalf("expected expired hold to be reclaimable: %v", err)
	}
	unlock()
}

func TestRedisLockerRenewsWhileHeld(t *testing.T) {
	locker, s := setupTestRedis(t)
	defer locker.Close()
	locker.renew = 10 * time.Millisecond
	const key = "session-lock:sess-slow"

	unlock, err := locker.Lock(context.Background(), "sess-slow")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}

	// Outlive the original ttl several times over; each renewal restores the full ttl.
	for i := 0; i < 3; i++ {
		s.FastForward(45 * time.Second)
		deadline := time.Now().Add(time.Second)
		for s.TTL(key) != time.Minute {
			if time.Now().After(deadline) {
				t.Fatalf("hold was not renewed, ttl=%v exists=%v", s.TTL(key), s.Exists(key))
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "sess-slow"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected renewed hold to block a second caller, got %v", err)
	}

	unlock()
	if s.Exists(key) {
		t.Fatal("expected unlock to delete the key")
	}
	s.FastForward(time.Minute)
	if s.Exists(key) {
		t.Fatal("renewal kept running after unlock")
	}
}
