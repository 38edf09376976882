package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/LichessStats/internal/pkg/gamesync"
)

const (
	AccountLockPrefix = "sync:lock:user:"
	AccountLockTTL    = 10 * time.Minute
)

var (
	// errAccountBusy pushes a job back until the account's running sync ends
	errAccountBusy = errors.New("account sync in progress")
	// errJobRunning means this very job is already being run by another worker
	errJobRunning = errors.New("job already running")
)

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

func accountLockKey(userID uint) string {
	return fmt.Sprintf("%s%d", AccountLockPrefix, userID)
}

func lockOwner(job *Job) string {
	return string(job.Type) + ":" + job.ID
}

// processFullBackfillJob imports the whole history of one account
func (q *Queue) processFullBackfillJob(ctx context.Context, job *Job) error {
	payload, err := SyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid payload: %v", ErrPermanent, err)
	}
	return q.runLocked(ctx, job, payload.UserID, q.syncer.RunFullBackfill)
}

// processRecentRefreshJob imports the newest page of one account
func (q *Queue) processRecentRefreshJob(ctx context.Context, job *Job) error {
	payload, err := SyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("%w: invalid payload: %v", ErrPermanent, err)
	}
	return q.runLocked(ctx, job, payload.UserID, q.syncer.RunRecentRefresh)
}

// runLocked runs one sync while holding the account lock. A job that finds the
// lock taken is merged into the running sync: a backfill waiting on a refresh
// is pushed back, everything else is skipped.
func (q *Queue) runLocked(ctx context.Context, job *Job, userID uint, run func(context.Context, uint) (gamesync.Result, error)) error {
	key := accountLockKey(userID)
	owner := lockOwner(job)

	acquired, err := q.client.SetNX(ctx, key, owner, AccountLockTTL).Result()
	if err != nil {
		return fmt.Errorf("lock account %d: %w", userID, err)
	}
	if !acquired {
		holder, err := q.client.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("read lock of account %d: %w", userID, err)
		}
		switch {
		case holder == owner:
			return errJobRunning
		case job.Type == JobTypeFullBackfill && !strings.HasPrefix(holder, string(JobTypeFullBackfill)+":"):
			log.Infof("[JobQueue] Job %s: user %d busy (%s), backfill deferred", job.ID, userID, holder)
			return errAccountBusy
		default:
			log.Infof("[JobQueue] Job %s: user %d already syncing (%s), skipped", job.ID, userID, holder)
			return nil
		}
	}
	defer q.releaseAccountLock(key, owner)

	runCtx := gamesync.WithProgress(ctx, func(gamesync.Result) {
		q.heartbeat(ctx, job, key, owner)
	})
	res, err := run(runCtx, userID)
	return q.finishSync(ctx, job, userID, res, err)
}

// heartbeat marks a running job as alive and extends its account lock
func (q *Queue) heartbeat(ctx context.Context, job *Job, key, owner string) {
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job)
	if err := renewLockScript.Run(ctx, q.client, []string{key}, owner, AccountLockTTL.Milliseconds()).Err(); err != nil {
		log.Warnf("[JobQueue] Job %s: could not renew lock %s: %v", job.ID, key, err)
	}
}

func (q *Queue) releaseAccountLock(key, owner string) {
	if err := releaseLockScript.Run(context.Background(), q.client, []string{key}, owner).Err(); err != nil {
		log.Warnf("[JobQueue] Could not release lock %s: %v", key, err)
	}
}

// holdsAccountLock reports whether job still owns the lock of its account
func (q *Queue) holdsAccountLock(ctx context.Context, job *Job) bool {
	if job.Type != JobTypeFullBackfill && job.Type != JobTypeRecentRefresh {
		return false
	}
	payload, err := SyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return false
	}
	holder, err := q.client.Get(ctx, accountLockKey(payload.UserID)).Result()
	return err == nil && holder == lockOwner(job)
}

func (q *Queue) finishSync(ctx context.Context, job *Job, userID uint, res gamesync.Result, err error) error {
	if errors.Is(err, gamesync.ErrAccountNotFound) {
		// account deleted after the job was queued
		log.Warnf("[JobQueue] Job %s: user %d no longer exists", job.ID, userID)
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("[JobQueue] Job %s (%s) for user %d: fetched=%d inserted=%d duplicates=%d rejected=%d",
		job.ID, job.Type, userID, res.Fetched, res.Inserted, res.Duplicates, res.Rejected)
	if err := q.counters.Record(ctx, userID, res); err != nil {
		log.Warnf("[JobQueue] Job %s: could not record sync counters: %v", job.ID, err)
	}
	return nil
}

// processRefreshAllJob enqueues one recent_refresh job per known account
func (q *Queue) processRefreshAllJob(ctx context.Context, job *Job) error {
	users, err := q.accounts.ListAll()
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}

	enqueued := 0
	for _, user := range users {
		if _, err := q.EnqueueJob(ctx, JobTypeRecentRefresh, SyncJobPayload{UserID: user.ID}.ToMap()); err != nil {
			log.Errorf("[JobQueue] Job %s: could not enqueue refresh for %s: %v", job.ID, user.Username, err)
			continue
		}
		enqueued++
	}
	log.Infof("[JobQueue] Job %s scheduled %d/%d account refreshes", job.ID, enqueued, len(users))
	return nil
}
