package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/LichessStats/app/controllers"
	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/config"
	"github.com/ManuelReschke/LichessStats/internal/pkg/security"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the handlers and services the routes are built from.
type Dependencies struct {
	Config  *config.Config
	Users   repository.UserRepository
	Issuer  *security.TokenIssuer
	Auth    *controllers.AuthController
	Games   *controllers.GameController
	Profile *controllers.ProfileController
	Sync    *controllers.SyncController
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter installs the global UserContext middleware, so it has to run
	// before the API routes that depend on it.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
