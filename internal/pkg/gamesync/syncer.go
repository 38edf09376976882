package gamesync

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/LichessStats/app/models"
	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/config"
	"github.com/ManuelReschke/LichessStats/internal/pkg/lichess"
)

// State is the position of a run in its page loop.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StatePersisting State = "persisting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Kind names the two entry points.
type Kind string

const (
	KindFullBackfill  Kind = "full_backfill"
	KindRecentRefresh Kind = "recent_refresh"
)

// GameSource is the remote side of a sync run.
type GameSource interface {
	StreamGames(ctx context.Context, username, token string, q lichess.GameQuery) iter.Seq2[lichess.RawGame, error]
}

// Result summarizes one run. Pages committed before a failure are counted.
type Result struct {
	Kind       Kind  `json:"kind"`
	Fetches    int   `json:"fetches"`
	Commits    int   `json:"commits"`
	Fetched    int   `json:"fetched"`
	Inserted   int   `json:"inserted"`
	Duplicates int   `json:"duplicates"`
	Rejected   int   `json:"rejected"`
	State      State `json:"state"`
}

// Syncer imports the game history of one account at a time. Pages of a run are
// sequential; every page is committed in its own transaction.
type Syncer struct {
	db            *gorm.DB
	users         repository.UserRepository
	source        GameSource
	backfillBatch int
	refreshBatch  int
	now           func() time.Time
}

func NewSyncer(db *gorm.DB, source GameSource, cfg config.SyncConfig) *Syncer {
	s := &Syncer{
		db:            db,
		users:         repository.NewUserRepository(db),
		source:        source,
		backfillBatch: cfg.BackfillBatchSize,
		refreshBatch:  cfg.RefreshBatchSize,
		now:           time.Now,
	}
	if s.backfillBatch <= 0 {
		s.backfillBatch = config.DefaultBackfillBatchSize
	}
	if s.refreshBatch <= 0 {
		s.refreshBatch = config.DefaultRefreshBatchSize
	}
	return s
}

// RunFullBackfill walks the whole history newest to oldest.
func (s *Syncer) RunFullBackfill(ctx context.Context, userID uint) (Result, error) {
	return s.run(ctx, userID, KindFullBackfill, s.backfillBatch, true)
}

// RunRecentRefresh imports at most one page of the newest games.
func (s *Syncer) RunRecentRefresh(ctx context.Context, userID uint) (Result, error) {
	return s.run(ctx, userID, KindRecentRefresh, s.refreshBatch, false)
}

func (s *Syncer) run(ctx context.Context, userID uint, kind Kind, batch int, paginate bool) (Result, error) {
	res := Result{Kind: kind, State: StateIdle}

	user, err := s.users.GetByID(userID)
	if err != nil {
		res.State = StateFailed
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return res, fmt.Errorf("%w: id %d", ErrAccountNotFound, userID)
		}
		return res, fmt.Errorf("load account %d: %w", userID, err)
	}

	log.Infof("[Sync] Starting %s for %s (user %d, batch %d)", kind, user.Username, user.ID, batch)

	var until int64
	for {
		res.State = StateFetching
		page, err := s.fetchPage(ctx, user, lichess.GameQuery{Max: batch, Until: until})
		res.Fetches++
		if err != nil {
			res.State = StateFailed
			log.Errorf("[Sync] %s for %s failed on page %d: %v", kind, user.Username, res.Fetches, err)
			return res, fmt.Errorf("fetch page %d: %w", res.Fetches, err)
		}
		res.Fetched += len(page)

		res.State = StatePersisting
		if err := s.persistPage(user.ID, page, &res); err != nil {
			res.State = StateFailed
			log.Errorf("[Sync] %s for %s could not store page %d: %v", kind, user.Username, res.Fetches, err)
			return res, err
		}
		ReportProgress(ctx, res)

		if !paginate || len(page) < batch {
			break
		}
		oldest := page[len(page)-1]
		if oldest.CreatedAt == nil {
			log.Warnf("[Sync] Game %q has no timestamp, stopping backfill for %s", oldest.ID, user.Username)
			break
		}
		next := *oldest.CreatedAt - 1
		if until != 0 && next >= until {
			log.Warnf("[Sync] Cursor for %s did not advance past %d, stopping backfill", user.Username, until)
			break
		}
		until = next
	}

	res.State = StateDone
	if err := s.users.MarkSynced(user.ID, s.now()); err != nil {
		log.Warnf("[Sync] Could not record sync time for %s: %v", user.Username, err)
	}
	log.Infof("[Sync] Finished %s for %s: fetches=%d inserted=%d duplicates=%d rejected=%d",
		kind, user.Username, res.Fetches, res.Inserted, res.Duplicates, res.Rejected)
	return res, nil
}

// fetchPage drains one request. A stream that breaks midway returns no records.
func (s *Syncer) fetchPage(ctx context.Context, user *models.User, q lichess.GameQuery) ([]lichess.RawGame, error) {
	page := make([]lichess.RawGame, 0, q.Max)
	for raw, err := range s.source.StreamGames(ctx, user.Username, user.AccessToken, q) {
		if err != nil {
			return nil, err
		}
		page = append(page, raw)
	}
	return page, nil
}

func (s *Syncer) persistPage(userID uint, page []lichess.RawGame, res *Result) error {
	games := make([]*models.Game, 0, len(page))
	for _, raw := range page {
		game, err := Normalize(raw)
		if err != nil {
			res.Rejected++
			log.Debugf("[Sync] Skipping record without id for user %d", userID)
			continue
		}
		games = append(games, game)
	}
	if len(games) == 0 {
		return nil
	}

	var inserted, duplicates int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		persister := NewPersister(repository.NewGameRepository(tx))
		for _, game := range games {
			ok, err := persister.Save(userID, game)
			if err != nil {
				return err
			}
			if ok {
				inserted++
			} else {
				duplicates++
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit page: %w", err)
	}

	res.Commits++
	res.Inserted += inserted
	res.Duplicates += duplicates
	return nil
}
