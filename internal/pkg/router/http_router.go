package router

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/ManuelReschke/LichessStats/app/controllers"
	"github.com/ManuelReschke/LichessStats/internal/pkg/middleware"
)

type HttpRouter struct {
	deps Dependencies
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// the frontend runs on its own origin and sends the session cookie
	origins := strings.Join(h.deps.Config.AllowedOrigins, ",")
	if origins == "" {
		origins = h.deps.Config.RedirectURL
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: true,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
	}))

	// Apply UserContext middleware globally
	app.Use(middleware.UserContextMiddleware(h.deps.Issuer, h.deps.Users))

	app.Get("/health", controllers.HandleHealth)
}

func NewHttpRouter(deps Dependencies) *HttpRouter {
	return &HttpRouter{deps: deps}
}
