package oauth

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/ManuelReschke/LichessStats/internal/pkg/config"
	"github.com/ManuelReschke/LichessStats/internal/pkg/lichess"
)

// StateDatabase keeps the OAuth state apart from the job queue keys.
const StateDatabase = 2

// Setup registers the Lichess provider and the store holding the OAuth
// state between redirect and callback. A nil storage keeps the state in memory.
// It is safe to call multiple times; the provider will just be re-registered.
func Setup(cfg *config.Config, api *lichess.Client, storage fiber.Storage) {
	goth.UseProviders(New(
		api,
		cfg.Lichess.ClientID,
		cfg.Lichess.ClientSecret,
		cfg.Lichess.CallbackURL,
		cfg.Lichess.Scopes...,
	))

	gothfiber.SessionStore = session.New(session.Config{
		Storage:        storage,
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !cfg.IsDev(),
		Expiration:     time.Hour,
	})
}

// NewStateStorage opens the redis storage for OAuth state.
func NewStateStorage(cfg config.CacheConfig) fiber.Storage {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		log.Warnf("[OAuth] Invalid cache port %q, falling back to 6379", cfg.Port)
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host:     cfg.Host,
		Port:     port,
		Password: cfg.Password,
		Database: StateDatabase,
		Reset:    false,
	})
}
