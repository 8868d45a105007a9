package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only when the caller still holds it, so a
// slow job can never release a lock a later run re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock provides per-job mutual exclusion across worker instances using
// a redis SETNX key with a TTL.
type JobLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewJobLock creates a lock manager on the given redis connection.
func NewJobLock(rdb *redis.Client, ttl time.Duration) *JobLock {
	return &JobLock{rdb: rdb, ttl: ttl}
}

// Acquire tries to take the lock for a job. It returns a release function
// when the lock was taken, or ok=false when another instance holds it.
func (l *JobLock) Acquire(ctx context.Context, job string) (release func(), ok bool, err error) {
	key := "joblock:" + job
	value := uuid.NewString()

	acquired, err := l.rdb.SetNX(ctx, key, value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", job, err)
	}
	if !acquired {
		return nil, false, nil
	}

	release = func() {
		// Release must survive job context cancellation.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.rdb, []string{key}, value).Err()
	}
	return release, true, nil
}
