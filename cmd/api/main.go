package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/petcare-service/internal/api/http"
	"github.com/spec-kit/petcare-service/internal/api/http/handlers"
	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/cache"
	"github.com/spec-kit/petcare-service/internal/config"
	"github.com/spec-kit/petcare-service/internal/events"
	"github.com/spec-kit/petcare-service/internal/observability"
	"github.com/spec-kit/petcare-service/internal/persistence"
	"github.com/spec-kit/petcare-service/internal/repository"
	"github.com/spec-kit/petcare-service/internal/service"
	"github.com/spec-kit/petcare-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics("petcare")
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger))

	pool := pg.PoolHandle()
	accountRepo := repository.NewAccountRepository(pool, cfg.Postgres.QueryTimeout())
	refreshRepo := repository.NewRefreshTokenRepository(pool, cfg.Postgres.QueryTimeout())
	roleCache := cache.NewRoleCache(redis.Client, cfg.Redis.OpTimeout())

	secret := []byte(cfg.Auth.JWTSecret)
	leeway := auth.WithLeeway(cfg.Auth.ClockSkew())
	tokens := auth.NewTokenManager(secret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL(), leeway)
	validator := auth.NewTokenValidator(secret, cfg.Auth.JWTIssuer, leeway)

	sessions := service.NewSessionService(service.SessionDependencies{
		Tokens:               tokens,
		Validator:            validator,
		RefreshRepo:          refreshRepo,
		AccountRepo:          accountRepo,
		RoleCache:            roleCache,
		Dispatcher:           dispatcher,
		Logger:               logger,
		Recorder:             metrics,
		RoleCacheTTL:         cfg.Auth.RoleCacheTTL(),
		RotateRefreshOnRenew: cfg.Auth.RotateRefreshOnRenew,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		AccountRepo: accountRepo,
		Sessions:    sessions,
		Dispatcher:  dispatcher,
		Logger:      logger,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	roleResolver := service.NewRoleResolver(roleCache, accountRepo, cfg.Auth.RoleCacheTTL(), logger, metrics)
	authMiddleware := auth.NewAuthMiddleware(validator, roleResolver, logger, metrics, httptransport.PublicPaths...)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService, sessions),
		Accounts:       handlers.NewAccountsHandler(authService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
