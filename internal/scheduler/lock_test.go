package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLock(t *testing.T, ttl time.Duration) *JobLock {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewJobLock(rdb, ttl)
}

func TestJobLockMutualExclusion(t *testing.T) {
	lock := newTestLock(t, time.Minute)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, TaskRiskSweep)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	_, ok, err = lock.Acquire(ctx, TaskRiskSweep)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to be refused while held")
	}

	release()

	release2, ok, err := lock.Acquire(ctx, TaskRiskSweep)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire to succeed after release")
	}
	release2()
}

func TestJobLockIsPerJob(t *testing.T) {
	lock := newTestLock(t, time.Minute)
	ctx := context.Background()

	release1, ok, err := lock.Acquire(ctx, TaskRiskSweep)
	if err != nil || !ok {
		t.Fatalf("Acquire risk sweep: ok=%v err=%v", ok, err)
	}
	defer release1()

	release2, ok, err := lock.Acquire(ctx, TaskOpportunityScan)
	if err != nil || !ok {
		t.Fatalf("Acquire scan alongside sweep: ok=%v err=%v", ok, err)
	}
	defer release2()
}

func TestJobLockReleaseIgnoresStolenLock(t *testing.T) {
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer rdb.Close()
	lock := NewJobLock(rdb, 50*time.Millisecond)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, TaskOutreachCycle)
	if err != nil || !ok {
		t.Fatalf("Acquire: ok=%v err=%v", ok, err)
	}

	// Simulate TTL expiry and re-acquisition by another instance.
	srv.FastForward(100 * time.Millisecond)
	release2, ok, err := lock.Acquire(ctx, TaskOutreachCycle)
	if err != nil || !ok {
		t.Fatalf("re-Acquire after expiry: ok=%v err=%v", ok, err)
	}

	// The stale release must not free the new holder's lock.
	release()
	_, ok, err = lock.Acquire(ctx, TaskOutreachCycle)
	if err != nil {
		t.Fatalf("Acquire while held: %v", err)
	}
	if ok {
		t.Fatal("stale release freed a lock it no longer owned")
	}
	release2()
}
