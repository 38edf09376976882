package jobqueue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/LichessStats/internal/pkg/gamesync"
)

// slowSyncer takes pages*pause per run and tracks how many runs overlap.
type slowSyncer struct {
	pages     int
	pause     time.Duration
	heartbeat bool

	active    atomic.Int32
	maxActive atomic.Int32
	runs      atomic.Int32
}

func (s *slowSyncer) run(ctx context.Context, kind gamesync.Kind) (gamesync.Result, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	s.runs.Add(1)

	res := gamesync.Result{Kind: kind}
	for i := 0; i < s.pages; i++ {
		time.Sleep(s.pause)
		res.Fetches++
		res.Commits++
		if s.heartbeat {
			gamesync.ReportProgress(ctx, res)
		}
	}
	res.State = gamesync.StateDone
	return res, nil
}

func (s *slowSyncer) RunFullBackfill(ctx context.Context, _ uint) (gamesync.Result, error) {
	return s.run(ctx, gamesync.KindFullBackfill)
}

func (s *slowSyncer) RunRecentRefresh(ctx context.Context, _ uint) (gamesync.Result, error) {
	return s.run(ctx, gamesync.KindRecentRefresh)
}

func TestQueue_LongBackfillNeverRunsTwice(t *testing.T) {
	tests := []struct {
		name    string
		syncer  *slowSyncer
		enqueue int
	}{
		{"heartbeat keeps job fresh", &slowSyncer{pages: 6, pause: 100 * time.Millisecond, heartbeat: true}, 1},
		{"lock guards silent run", &slowSyncer{pages: 1, pause: 600 * time.Millisecond}, 1},
		{"duplicate enqueue is merged", &slowSyncer{pages: 6, pause: 100 * time.Millisecond, heartbeat: true}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, mr := newTestQueue(t, tt.syncer, staticAccounts{})
			q.sweepMaxAge = 200 * time.Millisecond
			q.sweepInterval = 20 * time.Millisecond
			ctx := context.Background()

			trigger := NewTrigger(q)
			for i := 0; i < tt.enqueue; i++ {
				_, err := trigger.RunFullBackfill(ctx, 5)
				require.NoError(t, err)
			}

			q.Start()
			done := WaitForCondition(func() bool {
				pending, _ := q.GetQueueSize(ctx)
				processing, _ := q.GetProcessingSize(ctx)
				return tt.syncer.runs.Load() >= 1 && tt.syncer.active.Load() == 0 && pending == 0 && processing == 0
			}, 5*time.Second)
			// leave the sweeper a few more ticks to requeue anything it wrongly considers stuck
			time.Sleep(100 * time.Millisecond)
			q.Stop()

			require.True(t, done, "backfill should finish")
			assert.Equal(t, int32(1), tt.syncer.maxActive.Load(), "account ran concurrently")
			assert.Equal(t, int32(1), tt.syncer.runs.Load())
			assert.False(t, mr.Exists(accountLockKey(5)))
		})
	}
}

func TestSweepOnce_SkipsJobHoldingAccountLock(t *testing.T) {
	q, mr := newTestQueue(t, &fakeSyncer{}, staticAccounts{})
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobTypeFullBackfill, SyncJobPayload{UserID: 4}.ToMap())
	require.NoError(t, err)
	_, err = q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	require.NoError(t, err)
	job.MarkAsProcessing()
	job.UpdatedAt = time.Now().Add(-time.Hour)
	q.updateJob(ctx, job)

	require.NoError(t, mr.Set(accountLockKey(4), lockOwner(job)))
	assert.Zero(t, q.sweepOnce(ctx, time.Minute))

	// a lock held by another job does not protect this one
	require.NoError(t, mr.Set(accountLockKey(4), "full_backfill:other"))
	assert.Equal(t, 1, q.sweepOnce(ctx, time.Minute))
}

func TestProcessJob_HeartbeatRenewsJobAndLock(t *testing.T) {
	syncer := &slowSyncer{pages: 2, heartbeat: true}
	q, mr := newTestQueue(t, syncer, staticAccounts{})
	ctx := context.Background()

	job, err := q.EnqueueJob(ctx, JobTypeFullBackfill, SyncJobPayload{UserID: 6}.ToMap())
	require.NoError(t, err)

	var beats []time.Time
	var lockTTLs []time.Duration
	q.syncer = progressSpy{SyncRunner: syncer, onProgress: func() {
		stored, err := q.GetJob(ctx, job.ID)
		require.NoError(t, err)
		beats = append(beats, stored.UpdatedAt)
		lockTTLs = append(lockTTLs, mr.TTL(accountLockKey(6)))
		// age the lock so the next page has to renew it
		mr.FastForward(5 * time.Minute)
	}}
	runNext(t, q)

	require.Len(t, beats, 2)
	assert.False(t, beats[1].Before(beats[0]))
	assert.Equal(t, []time.Duration{AccountLockTTL, AccountLockTTL}, lockTTLs)
}

// progressSpy observes the queue state right after each reported page.
type progressSpy struct {
	SyncRunner
	onProgress func()
}

func (p progressSpy) RunFullBackfill(ctx context.Context, userID uint) (gamesync.Result, error) {
	spyCtx := gamesync.WithProgress(ctx, func(res gamesync.Result) {
		gamesync.ReportProgress(ctx, res)
		p.onProgress()
	})
	return p.SyncRunner.RunFullBackfill(spyCtx, userID)
}

func TestProcessJob_BackfillWaitsForRunningRefresh(t *testing.T) {
	syncer := &fakeSyncer{}
	q, mr := newTestQueue(t, syncer, staticAccounts{})
	ctx := context.Background()

	require.NoError(t, mr.Set(accountLockKey(9), "recent_refresh:running"))
	job, err := q.EnqueueJob(ctx, JobTypeFullBackfill, SyncJobPayload{UserID: 9}.ToMap())
	require.NoError(t, err)
	runNext(t, q)

	backfills, _ := syncer.calls()
	assert.Empty(t, backfills)
	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Zero(t, stored.RetryCount)

	require.True(t, WaitForCondition(func() bool {
		size, _ := q.GetQueueSize(ctx)
		return size == 1
	}, time.Second), "deferred backfill should be queued again")

	mr.Del(accountLockKey(9))
	runNext(t, q)
	backfills, _ = syncer.calls()
	assert.Equal(t, []uint{9}, backfills)
}

func TestProcessJob_RefreshSkippedWhileAccountSyncs(t *testing.T) {
	syncer := &fakeSyncer{}
	q, mr := newTestQueue(t, syncer, staticAccounts{})
	ctx := context.Background()

	require.NoError(t, mr.Set(accountLockKey(9), "full_backfill:running"))
	job, err := q.EnqueueJob(ctx, JobTypeRecentRefresh, SyncJobPayload{UserID: 9}.ToMap())
	require.NoError(t, err)
	runNext(t, q)

	_, refreshes := syncer.calls()
	assert.Empty(t, refreshes)
	assert.False(t, mr.Exists(JobKeyPrefix+job.ID), "skipped job is completed")
	holder, err := mr.Get(accountLockKey(9))
	require.NoError(t, err)
	assert.Equal(t, "full_backfill:running", holder, "the running sync keeps its lock")
}
