package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/affan-mulla/nextup/ideas"
	ideaHandlers "github.com/affan-mulla/nextup/ideas/handlers"
	ideaRepository "github.com/affan-mulla/nextup/ideas/repository"
	ideaServices "github.com/affan-mulla/nextup/ideas/services"
	"github.com/affan-mulla/nextup/internal/cache"
	"github.com/affan-mulla/nextup/internal/database/memory"
	"github.com/affan-mulla/nextup/internal/database/migrations"
	"github.com/affan-mulla/nextup/internal/database/postgres"
	"github.com/affan-mulla/nextup/internal/metrics"
	"github.com/affan-mulla/nextup/internal/middleware/requestid"
	"github.com/affan-mulla/nextup/internal/pkg/log"
	platformconfig "github.com/affan-mulla/nextup/internal/platform/config"
	"github.com/affan-mulla/nextup/votes"
	voteHandlers "github.com/affan-mulla/nextup/votes/handlers"
	voteRepository "github.com/affan-mulla/nextup/votes/repository"
	voteServices "github.com/affan-mulla/nextup/votes/services"
)

// repositories is the storage the services are built on
type repositories struct {
	ideas ideaRepository.IdeaRepository
	votes voteRepository.VoteRepository
	close func() error
}

func main() {
	cfg, err := platformconfig.LoadFromEnv()
	if err != nil {
		log.Error("Failed to load platform config: %v", err)
		os.Exit(1)
	}
	log.SetDebug(cfg.Server.Debug)

	ctx := context.Background()

	repos, err := openRepositories(ctx, cfg)
	if err != nil {
		log.Error("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := repos.close(); err != nil {
			log.Warn("Failed to close database: %v", err)
		}
	}()

	var cacheService *cache.GenericCacheService
	if cfg.Cache.Enabled {
		cacheConfig := cacheConfigFrom(cfg.Cache)
		backend, err := cache.NewCache(cacheConfig)
		if err != nil {
			log.Error("Failed to create %s cache: %v", cfg.Cache.Backend, err)
			os.Exit(1)
		}
		cacheService = cache.NewGenericCacheService(backend, cacheConfig)
		defer cacheService.Close()
		log.Info("Idea page cache enabled (backend=%s, ttl=%s)", cfg.Cache.Backend, cfg.Cache.TTL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	ideaService := ideaServices.NewIdeaService(repos.ideas, repos.votes, cacheService)
	voteService := voteServices.NewVoteService(repos.votes, repos.ideas, cfg, ideaService, collector)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			log.ErrorWithContext(c.UserContext(), "[ErrorHandler] Path: %s, Error: %v, Code: %d", c.Path(), err, code)

			// If response already set by handler, don't override it
			if len(c.Response().Body()) > 0 {
				return nil
			}

			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.WebDomain,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:     "GET, POST, OPTIONS",
	}))

	router := fiber.Router(app)
	if cfg.Server.BaseRoute != "" && cfg.Server.BaseRoute != "/" {
		router = app.Group(cfg.Server.BaseRoute)
	}

	ideas.RegisterRoutes(router, &ideas.IdeasHandlers{
		IdeaHandler: ideaHandlers.NewIdeaHandler(ideaService),
	}, cfg)
	votes.RegisterRoutes(router, &votes.VotesHandlers{
		VoteHandler: voteHandlers.NewVoteHandler(voteService),
	}, cfg)

	app.Get(cfg.Server.MetricsPath, metrics.Handler(registry))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("Graceful shutdown failed: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Info("Starting NextUp API Server (Ideas + Votes) on %s (database=%s)", addr, cfg.Database.Type)
	if err := app.Listen(addr); err != nil {
		log.Error("Server stopped: %v", err)
	}
}

// openRepositories connects the configured database backend
func openRepositories(ctx context.Context, cfg *platformconfig.Config) (*repositories, error) {
	switch cfg.Database.Type {
	case platformconfig.DatabaseTypePostgreSQL:
		if cfg.Database.AutoMigrate {
			if err := migrations.Run(cfg.Database.Postgres.PostgresURL()); err != nil {
				return nil, err
			}
		}

		client, err := postgres.NewClient(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to PostgreSQL at %s:%d/%s", cfg.Database.Postgres.Host, cfg.Database.Postgres.Port, cfg.Database.Postgres.Database)

		return &repositories{
			ideas: ideaRepository.NewPostgresRepository(client),
			votes: voteRepository.NewPostgresVoteRepository(client),
			close: client.Close,
		}, nil

	case platformconfig.DatabaseTypeMemory:
		log.Warn("Using the in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &repositories{
			ideas: store.IdeaRepository(),
			votes: store.VoteRepository(),
			close: func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}

func cacheConfigFrom(c platformconfig.CacheConfig) *cache.CacheConfig {
	return &cache.CacheConfig{
		Enabled:         c.Enabled,
		TTL:             c.TTL,
		Prefix:          c.Prefix,
		Backend:         cache.CacheType(c.Backend),
		MaxMemory:       c.MaxMemory,
		CleanupInterval: c.CleanupInterval,
		Redis: cache.RedisConfig{
			Address:      c.Redis.Address,
			Password:     c.Redis.Password,
			Database:     c.Redis.Database,
			PoolSize:     c.Redis.PoolSize,
			MinIdleConns: c.Redis.MinIdleConns,
			MaxConnAge:   c.Redis.MaxConnAge,
			Cluster: cache.ClusterConfig{
				Enabled:   c.Redis.ClusterEnabled,
				Addresses: c.Redis.ClusterAddrs,
			},
		},
	}
}
