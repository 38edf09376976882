package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ManuelReschke/LichessStats/internal/pkg/gamesync"
)

const (
	userCountersKey = "sync:counters:user:%d"

	fieldRuns       = "runs"
	fieldFetched    = "fetched"
	fieldInserted   = "inserted"
	fieldDuplicates = "duplicates"
	fieldRejected   = "rejected"
	fieldLastRun    = "last_run_at"
)

// Totals are the accumulated sync results of one account.
type Totals struct {
	Runs       int64      `json:"runs"`
	Fetched    int64      `json:"fetched"`
	Inserted   int64      `json:"inserted"`
	Duplicates int64      `json:"duplicates"`
	Rejected   int64      `json:"rejected"`
	LastRunAt  *time.Time `json:"last_run_at"`
}

// Counter keeps per-account sync totals in Redis hashes.
type Counter struct {
	client redis.UniversalClient
	now    func() time.Time
}

func New(client redis.UniversalClient) *Counter {
	return &Counter{client: client, now: time.Now}
}

// Record adds the result of one finished run
func (c *Counter) Record(ctx context.Context, userID uint, res gamesync.Result) error {
	key := fmt.Sprintf(userCountersKey, userID)
	pipe := c.client.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldRuns, 1)
	pipe.HIncrBy(ctx, key, fieldFetched, int64(res.Fetched))
	pipe.HIncrBy(ctx, key, fieldInserted, int64(res.Inserted))
	pipe.HIncrBy(ctx, key, fieldDuplicates, int64(res.Duplicates))
	pipe.HIncrBy(ctx, key, fieldRejected, int64(res.Rejected))
	pipe.HSet(ctx, key, fieldLastRun, c.now().UTC().Unix())
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the totals of an account; unknown accounts have zero totals
func (c *Counter) Get(ctx context.Context, userID uint) (*Totals, error) {
	values, err := c.client.HGetAll(ctx, fmt.Sprintf(userCountersKey, userID)).Result()
	if err != nil {
		return nil, err
	}

	totals := &Totals{}
	for field, dst := range map[string]*int64{
		fieldRuns:       &totals.Runs,
		fieldFetched:    &totals.Fetched,
		fieldInserted:   &totals.Inserted,
		fieldDuplicates: &totals.Duplicates,
		fieldRejected:   &totals.Rejected,
	} {
		if raw, ok := values[field]; ok {
			if *dst, err = strconv.ParseInt(raw, 10, 64); err != nil {
				return nil, fmt.Errorf("counter %s: %w", field, err)
			}
		}
	}
	if raw, ok := values[fieldLastRun]; ok {
		sec, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", fieldLastRun, err)
		}
		t := time.Unix(sec, 0).UTC()
		totals.LastRunAt = &t
	}
	return totals, nil
}
