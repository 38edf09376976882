package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/LichessStats/internal/pkg/middleware"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	auth := api.Group("/auth")
	auth.Get("/login", h.deps.Auth.HandleLogin)
	auth.Get("/callback", h.deps.Auth.HandleCallback)
	auth.Post("/logout", h.deps.Auth.HandleLogout)
	auth.Get("/me", middleware.RequireAPIAuth, h.deps.Auth.HandleMe)

	api.Get("/profile", middleware.RequireAPIAuth, h.deps.Profile.HandleProfile)

	api.Get("/games", middleware.RequireAPIAuth, h.deps.Games.HandleList)
	api.Get("/games/stats", middleware.RequireAPIAuth, h.deps.Games.HandleStats)

	api.Post("/sync", middleware.RequireAPIAuth, h.deps.Sync.HandleSync)
	api.Get("/sync/stats", middleware.RequireAPIAuth, h.deps.Sync.HandleStats)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
