package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/internal/pkg/gamesync"
)

// fakeSyncer records the runs it was asked for and returns canned errors
type fakeSyncer struct {
	mu        sync.Mutex
	backfills []uint
	refreshes []uint
	errs      []error // consumed one per call
}

func (f *fakeSyncer) next() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeSyncer) RunFullBackfill(_ context.Context, userID uint) (gamesync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backfills = append(f.backfills, userID)
	return gamesync.Result{Kind: gamesync.KindFullBackfill, State: gamesync.StateDone}, f.next()
}

func (f *fakeSyncer) RunRecentRefresh(_ context.Context, userID uint) (gamesync.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes = append(f.refreshes, userID)
	return gamesync.Result{Kind: gamesync.KindRecentRefresh, State: gamesync.StateDone}, f.next()
}

func (f *fakeSyncer) calls() (backfills, refreshes []uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.backfills...), append([]uint(nil), f.refreshes...)
}

type staticAccounts []uint

func (a staticAccounts) ListAll() ([]models.User, error) {
	users := make([]models.User, len(a))
	for i, id := range a {
		users[i].ID = id
		users[i].Username = fmt.Sprintf("user%d", id)
	}
	return users, nil
}

func newTestQueue(t *testing.T, syncer SyncRunner, accounts AccountLister) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewQueue(client, 2, syncer, accounts)
	q.retryDelay = 10 * time.Millisecond
	return q, mr
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
