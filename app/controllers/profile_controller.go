package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/LichessStats/internal/pkg/cache"
	"github.com/ManuelReschke/LichessStats/internal/pkg/lichess"
	"github.com/ManuelReschke/LichessStats/internal/pkg/usercontext"
)

const DefaultProfileTTL = 5 * time.Minute

// ProfileSource loads the remote account behind an access token.
type ProfileSource interface {
	GetAccount(ctx context.Context, token string) (*lichess.Account, error)
}

// Profile is the summary returned by GET /api/profile.
type Profile struct {
	Username  string         `json:"username"`
	CreatedAt int64          `json:"created_at"`
	SeenAt    int64          `json:"seen_at"`
	Ratings   map[string]int `json:"ratings"`
	Counts    map[string]int `json:"counts"`
}

type ProfileController struct {
	source ProfileSource
	cache  *cache.Store
	ttl    time.Duration
}

// NewProfileController creates the controller; a nil store disables caching.
func NewProfileController(source ProfileSource, store *cache.Store, ttl time.Duration) *ProfileController {
	if ttl <= 0 {
		ttl = DefaultProfileTTL
	}
	return &ProfileController{source: source, cache: store, ttl: ttl}
}

// HandleProfile returns ratings and game counts from Lichess
func (p *ProfileController) HandleProfile(c *fiber.Ctx) error {
	user := usercontext.GetUser(c)
	if user == nil {
		return errorResponse(c, fiber.StatusUnauthorized, "unauthorized", "Not authenticated")
	}

	ctx := c.Context()
	key := strconv.FormatUint(uint64(user.ID), 10)

	if p.cache != nil {
		var cached Profile
		if err := p.cache.Get(ctx, key, &cached); err == nil {
			return c.JSON(cached)
		} else if !errors.Is(err, cache.ErrMiss) {
			log.Warnf("[Profile] Cache read failed: %v", err)
		}
	}

	account, err := p.source.GetAccount(ctx, user.AccessToken)
	if err != nil {
		log.Errorf("[Profile] Could not load account of %s: %v", user.Username, err)
		switch {
		case errors.Is(err, lichess.ErrRemoteUnavailable):
			return errorResponse(c, fiber.StatusServiceUnavailable, "remote_unavailable", "Lichess is not reachable")
		case errors.Is(err, lichess.ErrRemoteRejected):
			return errorResponse(c, fiber.StatusBadGateway, "remote_rejected", "Lichess rejected the request")
		default:
			return errorResponse(c, fiber.StatusBadGateway, "bad_gateway", "Unexpected response from Lichess")
		}
	}

	counts := account.Count
	if counts == nil {
		counts = map[string]int{}
	}
	profile := Profile{
		Username:  account.Username,
		CreatedAt: account.CreatedAt,
		SeenAt:    account.SeenAt,
		Ratings:   account.Ratings(),
		Counts:    counts,
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, profile, p.ttl); err != nil {
			log.Warnf("[Profile] Cache write failed: %v", err)
		}
	}
	return c.JSON(profile)
}
