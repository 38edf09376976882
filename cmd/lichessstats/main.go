package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ManuelReschke/LichessStats/app/controllers"
	"github.com/ManuelReschke/LichessStats/app/repository"
	"github.com/ManuelReschke/LichessStats/internal/pkg/cache"
	"github.com/ManuelReschke/LichessStats/internal/pkg/config"
	"github.com/ManuelReschke/LichessStats/internal/pkg/database"
	"github.com/ManuelReschke/LichessStats/internal/pkg/env"
	"github.com/ManuelReschke/LichessStats/internal/pkg/gamesync"
	"github.com/ManuelReschke/LichessStats/internal/pkg/jobqueue"
	"github.com/ManuelReschke/LichessStats/internal/pkg/lichess"
	"github.com/ManuelReschke/LichessStats/internal/pkg/oauth"
	"github.com/ManuelReschke/LichessStats/internal/pkg/router"
	"github.com/ManuelReschke/LichessStats/internal/pkg/security"
)

func main() {
	if err := env.SetupEnvFile(); err != nil {
		log.Warnf("No .env file loaded: %v", err)
	}
	cfg := config.Load()

	app, manager := NewApplication(cfg)
	manager.Start()

	go func() {
		if err := app.Listen(cfg.ListenAddr()); err != nil {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Errorf("HTTP shutdown failed: %v", err)
	}
	manager.Stop()
}

// NewApplication wires storage, the sync pipeline and the HTTP surface.
func NewApplication(cfg *config.Config) (*fiber.App, *jobqueue.Manager) {
	db, err := database.SetupDatabase(cfg.DB)
	if err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	repos := repository.NewRepositories(db)

	redisClient := cache.NewClient(cfg.Cache)
	api := lichess.NewClient(cfg.Lichess, cfg.Sync.RequestTimeout)

	syncer := gamesync.NewSyncer(db, api, cfg.Sync)
	queue := jobqueue.NewQueue(redisClient, cfg.Sync.Workers, syncer, repos.User)
	manager := jobqueue.NewManager(queue, cfg.Sync.RefreshInterval)

	issuer, err := security.NewTokenIssuer(cfg.SecretKey, security.AccessTokenTTL)
	if err != nil {
		log.Fatalf("Token issuer setup failed: %v", err)
	}

	oauth.Setup(cfg, api, oauth.NewStateStorage(cfg.Cache))

	app := fiber.New(fiber.Config{
		AppName: "LichessStats",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", monitor.New())
	app.Get("/metrics/queue", controllers.NewQueueController(manager.Trigger()).HandleQueueStats)

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Config:  cfg,
		Users:   repos.User,
		Issuer:  issuer,
		Auth:    controllers.NewAuthController(repos.User, issuer, manager.Trigger(), cfg.RedirectURL, !cfg.IsDev()),
		Games:   controllers.NewGameController(repos.Game),
		Profile: controllers.NewProfileController(api, cache.NewStore(redisClient, "profile:"), controllers.DefaultProfileTTL),
		Sync:    controllers.NewSyncController(manager.Trigger()),
	})

	return app, manager
}
