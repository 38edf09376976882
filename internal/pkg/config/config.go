package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuelReschke/LichessStats/internal/pkg/env"
)

// Defaults of the reference deployment
const (
	DefaultBackfillBatchSize = 30
	DefaultRefreshBatchSize  = 10
	DefaultRefreshInterval   = 60 * time.Second
	DefaultRequestTimeout    = 30 * time.Second
	DefaultWorkerCount       = 5
	DefaultLichessBaseURL    = "https://lichess.org"
)

// Config is built once at process start and handed to every component that needs it.
type Config struct {
	AppEnv         string
	AppHost        string
	AppPort        string
	SecretKey      string
	PublicDomain   string
	RedirectURL    string
	AllowedOrigins []string

	DB      DBConfig
	Cache   CacheConfig
	Lichess LichessConfig
	Sync    SyncConfig
}

type DBConfig struct {
	Driver   string // mysql or postgres
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
}

type LichessConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
}

type SyncConfig struct {
	BackfillBatchSize int
	RefreshBatchSize  int
	RefreshInterval   time.Duration
	RequestTimeout    time.Duration
	Workers           int
}

// Load assembles the configuration from the env layer (.env file first, OS second).
func Load() *Config {
	port := env.GetEnv("APP_PORT", "8000")
	publicDomain := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if publicDomain == "" {
		publicDomain = "http://localhost:" + port
	}

	cfg := &Config{
		AppEnv:         env.GetEnv("APP_ENV", "prod"),
		AppHost:        env.GetEnv("APP_HOST", "localhost"),
		AppPort:        port,
		SecretKey:      env.GetEnv("SECRET_KEY", "change-me"),
		PublicDomain:   publicDomain,
		RedirectURL:    strings.TrimRight(env.GetEnv("REDIRECT_URL", "http://localhost:5173"), "/"),
		AllowedOrigins: splitList(env.GetEnv("ALLOWED_ORIGINS", "http://localhost:5173")),
		DB: DBConfig{
			Driver:   strings.ToLower(env.GetEnv("DB_DRIVER", "mysql")),
			Host:     env.GetEnv("DB_HOST", "127.0.0.1"),
			Port:     env.GetEnv("DB_PORT", ""),
			User:     env.GetEnv("DB_USER", "lichess"),
			Password: env.GetEnv("DB_PASSWORD", "lichess"),
			Name:     env.GetEnv("DB_NAME", "lichess"),
		},
		Cache: CacheConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		Lichess: LichessConfig{
			BaseURL:      strings.TrimRight(env.GetEnv("LICHESS_BASE_URL", DefaultLichessBaseURL), "/"),
			ClientID:     env.GetEnv("LICHESS_CLIENT_ID", "dev-client-id"),
			ClientSecret: env.GetEnv("LICHESS_CLIENT_SECRET", ""),
			CallbackURL:  env.GetEnv("LICHESS_REDIRECT_URI", publicDomain+"/api/auth/callback"),
			Scopes:       strings.Fields(env.GetEnv("LICHESS_SCOPES", "preference:read email:read")),
		},
		Sync: SyncConfig{
			BackfillBatchSize: env.GetEnvInt("SYNC_BACKFILL_BATCH_SIZE", DefaultBackfillBatchSize),
			RefreshBatchSize:  env.GetEnvInt("SYNC_REFRESH_BATCH_SIZE", DefaultRefreshBatchSize),
			RefreshInterval:   env.GetEnvDuration("SYNC_REFRESH_INTERVAL", DefaultRefreshInterval),
			RequestTimeout:    env.GetEnvDuration("LICHESS_REQUEST_TIMEOUT", DefaultRequestTimeout),
			Workers:           env.GetEnvInt("JOB_QUEUE_WORKERS", DefaultWorkerCount),
		},
	}

	if cfg.DB.Port == "" {
		cfg.DB.Port = defaultDBPort(cfg.DB.Driver)
	}
	cfg.Sync.normalize()

	return cfg
}

// IsDev reports whether cookies may be sent over plain HTTP.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// ListenAddr returns host:port for fiber.App.Listen.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

func (s *SyncConfig) normalize() {
	if s.BackfillBatchSize <= 0 {
		s.BackfillBatchSize = DefaultBackfillBatchSize
	}
	if s.RefreshBatchSize <= 0 {
		s.RefreshBatchSize = DefaultRefreshBatchSize
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = DefaultRefreshInterval
	}
	if s.RequestTimeout <= 0 {
		s.RequestTimeout = DefaultRequestTimeout
	}
	if s.Workers <= 0 {
		s.Workers = DefaultWorkerCount
	}
}

func defaultDBPort(driver string) string {
	if driver == "postgres" {
		return "5432"
	}
	return "3306"
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
