package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/storefront-api/internal/api/http"
	"github.com/spec-kit/storefront-api/internal/api/http/handlers"
	"github.com/spec-kit/storefront-api/internal/auth"
	"github.com/spec-kit/storefront-api/internal/config"
	"github.com/spec-kit/storefront-api/internal/events"
	"github.com/spec-kit/storefront-api/internal/observability"
	"github.com/spec-kit/storefront-api/internal/persistence"
	"github.com/spec-kit/storefront-api/internal/repository"
	"github.com/spec-kit/storefront-api/internal/service"
	"github.com/spec-kit/storefront-api/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool(), migrationSource(cfg.Postgres.MigrationsDir), logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var userRepo repository.UserRepository
	if pool := pg.Pool(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
	} else {
		logger.Warn("POSTGRES_DSN not set; accounts are kept in memory and lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	}

	var throttle *auth.LoginThrottle
	if redis != nil {
		throttle = auth.NewRedisLoginThrottle(redis.Client(), cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow, logger)
	} else {
		throttle = auth.NewLocalLoginThrottle(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginWindow, logger)
	}

	dispatcher := events.NewInMemoryDispatcher(func(event events.Event, err error) {
		logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	})
	worker.StartAuditWorker(dispatcher, logger)

	keys, err := auth.DeriveKeys(cfg.Auth.SessionSecret)
	if err != nil {
		return err
	}
	cookies := auth.NewSessionCookies(
		auth.NewTokenManager(keys.Signing, cfg.Auth.SessionTTL),
		keys.Cookie,
		cfg.App.Production(),
	)

	metrics := observability.NewMetrics()

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: userRepo,
		Throttle: throttle,
		Events:   dispatcher,
		Logger:   logger,
	})
	userService := service.NewUserService(userRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:           handlers.NewAuthHandler(authService, cookies),
		Users:          handlers.NewUsersHandler(authService, userService, cookies),
		AuthMiddleware: auth.NewAuthMiddleware(cookies, logger, metrics),
		Metrics:        metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.App.Addr()),
			zap.String("env", cfg.App.Env),
			zap.Duration("session_ttl", cfg.Auth.SessionTTL),
		)
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("fiber listen: %w", err)
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	return app.ShutdownWithTimeout(shutdownTimeout)
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
