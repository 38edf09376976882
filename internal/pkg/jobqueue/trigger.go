package jobqueue

import (
	"context"

	"github.com/ManuelReschke/LichessStats/internal/pkg/metrics/counter"
)

// Trigger starts sync runs without waiting for them.
type Trigger struct {
	queue *Queue
}

func NewTrigger(queue *Queue) *Trigger {
	return &Trigger{queue: queue}
}

// RunFullBackfill queues the history import of a newly created account.
func (t *Trigger) RunFullBackfill(ctx context.Context, userID uint) (*Job, error) {
	return t.queue.EnqueueJob(ctx, JobTypeFullBackfill, SyncJobPayload{UserID: userID}.ToMap())
}

// RunRecentRefresh queues a refresh of every known account.
func (t *Trigger) RunRecentRefresh(ctx context.Context) (*Job, error) {
	return t.queue.EnqueueJob(ctx, JobTypeRefreshAll, map[string]interface{}{})
}

// RefreshAccount queues a refresh of a single account.
func (t *Trigger) RefreshAccount(ctx context.Context, userID uint) (*Job, error) {
	return t.queue.EnqueueJob(ctx, JobTypeRecentRefresh, SyncJobPayload{UserID: userID}.ToMap())
}

// Stats returns the queue snapshot.
func (t *Trigger) Stats(ctx context.Context) (*Stats, error) {
	return t.queue.Stats(ctx)
}

// AccountTotals returns the accumulated sync results of one account.
func (t *Trigger) AccountTotals(ctx context.Context, userID uint) (*counter.Totals, error) {
	return t.queue.counters.Get(ctx, userID)
}
