// Package main starts the env store server: REST API, dashboard and metrics,
// backed by the file store or PostgreSQL.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/envmanager/internal/config"
	"github.com/atinyakov/envmanager/internal/dashboard"
	"github.com/atinyakov/envmanager/internal/db"
	"github.com/atinyakov/envmanager/internal/logger"
	"github.com/atinyakov/envmanager/internal/middleware"
	"github.com/atinyakov/envmanager/internal/repository"
	"github.com/atinyakov/envmanager/internal/server/handler/http"
	"github.com/atinyakov/envmanager/internal/service"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Parse command-line and environment configuration.
	options, err := config.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "failed to init logger:", err)
		os.Exit(2)
	}
	zapLogger := log.Log
	defer func() { _ = zapLogger.Sync() }()

	if options.AdminSecret == config.DefaultAdminSecret {
		zapLogger.Warn(`ADMIN_SECRET is set to the default "changeme"; set a secure secret`)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, options, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot init storage", zap.Error(err))
	}
	defer closeRepo()

	limiter := newLoginLimiter(options, zapLogger)
	defer limiter.Close()

	// Initialize business-logic services.
	authService := service.NewAuthService(options.AdminSecret)
	envService := service.NewEnvService(repo)
	metrics := middleware.NewMetrics()
	// API and form logins draw from the same per-client budget.
	loginLimit := middleware.RateLimit(limiter, "login", options.LoginRateLimit, config.LoginWindow, metrics)

	dash, err := dashboard.New(dashboard.Config{
		Envs:   envService,
		Auth:   authService,
		Logger: zapLogger.Named("dashboard"),
		SetCookie: func(w nethttp.ResponseWriter, key string) {
			http.SetAuthCookie(w, key, options.CookieSecure)
		},
		ClearCookie: func(w nethttp.ResponseWriter) {
			http.ClearAuthCookie(w, options.CookieSecure)
		},
		LoginLimit: loginLimit,
	})
	if err != nil {
		zapLogger.Fatal("cannot init dashboard", zap.Error(err))
	}

	// Build the router with middleware and routes.
	router := http.NewRouter(http.RouterConfig{
		Auth:        authService,
		AuthHandler: &http.AuthHandler{Auth: authService, CookieSecure: options.CookieSecure},
		EnvHandler:  &http.EnvHandler{Envs: envService, Logger: zapLogger, Metrics: metrics},
		Dashboard:   dash,
		Logger:      zapLogger,
		Metrics:     metrics,
		Limiter:     limiter,
		LoginLimit:  options.LoginRateLimit,
		LoginWindow: config.LoginWindow,
	})

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if options.TLSEnabled() {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			errCh <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
}

// openRepository selects PostgreSQL when a DSN is configured and the file
// store otherwise. The returned func releases the backend.
func openRepository(ctx context.Context, options *config.Options, log *zap.Logger) (service.EnvRepository, func(), error) {
	if options.DatabaseDSN == "" {
		log.Info("using file store", zap.String("dir", options.DataDir))
		return repository.NewFileEnvRepository(afero.NewOsFs(), options.DataDir), func() {}, nil
	}

	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	db.StartSoftDeleteCleaner(ctx, postgresDB,
		time.Hour,       // interval
		30*24*time.Hour, // retention: 30 days
		log,
	)
	log.Info("using postgres store")
	return repository.NewPostgresEnvRepository(postgresDB), func() { _ = postgresDB.Close() }, nil
}

func newLoginLimiter(options *config.Options, log *zap.Logger) middleware.RateLimiter {
	if options.RedisAddr != "" {
		limiter, err := middleware.NewRedisRateLimiter(options.RedisAddr, log)
		if err == nil {
			log.Info("using redis login limiter", zap.String("addr", options.RedisAddr))
			return limiter
		}
		log.Warn("redis unavailable, falling back to in-memory login limiter", zap.Error(err))
	}
	return middleware.NewMemoryRateLimiter()
}
