package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThanhhLichh/dating-web-app/internal/auth"
	"github.com/ThanhhLichh/dating-web-app/internal/realtime"
	"github.com/ThanhhLichh/dating-web-app/internal/store"
	"github.com/Netflix/go-env"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/redis/go-redis/v9"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "realtime-service: %v\n", err)
	}
	os.Exit(code)
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

func run() (int, error) {
	config, err := loadConfig()
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	pool, err := pgxpool.New(ctx, config.DatabaseURL)
	if err != nil {
		return exitRuntime, fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	if config.AutoMigrate {
		if err := store.AutoMigrate(ctx, pool); err != nil {
			return exitRuntime, fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema up to date")
	}

	// Redis is optional; without it notifications stay on this instance.
	var rdb *redis.Client
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return exitConfig, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()
	}

	srv := realtime.NewServer(ctx, store.NewPostgresStore(pool), auth.NewVerifier([]byte(config.JWTSecret)),
		rdb, logger, config.ServerOptions())
	go srv.RunNotificationSubscriber(ctx)

	r := srv.Router(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	httpServer := &http.Server{Addr: config.Addr(), Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("realtime-service listening", "addr", config.Addr())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return exitRuntime, err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return exitRuntime, fmt.Errorf("shutdown: %w", err)
	}
	return exitOK, nil
}
