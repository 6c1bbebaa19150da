// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/edjs/seat-reservation/internal/cache"
	"github.com/edjs/seat-reservation/internal/config"
	"github.com/edjs/seat-reservation/internal/database"
	"github.com/edjs/seat-reservation/internal/handler"
	"github.com/edjs/seat-reservation/internal/logger"
	"github.com/edjs/seat-reservation/internal/repository"
	"github.com/edjs/seat-reservation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	appLog, err := logger.New(cfg.App.LogLevel, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = appLog.Sync() }()

	if err := run(cfg, appLog); err != nil {
		appLog.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, appLog *zap.Logger) error {
	ctx := context.Background()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database, appLog)
	if err != nil {
		return err
	}
	defer pool.Close()
	appLog.Info("connected to postgres",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName),
	)

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	// ── 2. Availability cache ────────────────────────────────────────────
	var availability service.AvailabilityCache = cache.Nop{}
	if cfg.Redis.Enabled {
		client, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			appLog.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			availability = cache.NewRedis(client, cfg.Redis.CacheTTL, cfg.Redis.Prefix, appLog.Named("cache"))
			appLog.Info("availability cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// ── 3. Wire up layers ────────────────────────────────────────────────
	sessions := repository.NewSessionRepository(pool)
	bookings := repository.NewBookingRepository(pool)
	svc := service.NewReservationService(sessions, bookings,
		service.WithCache(availability),
		service.WithLogger(appLog.Named("reservation")),
		service.WithLocation(cfg.Location()),
	)
	router := handler.NewRouter(handler.NewSessionHandler(svc, appLog), pool, appLog.Named("http"))

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	appLog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("server stopped")
	return nil
}
