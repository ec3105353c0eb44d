package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drew/identity-service/internal/api"
	"github.com/drew/identity-service/internal/auth"
	"github.com/drew/identity-service/internal/config"
	"github.com/drew/identity-service/internal/repository/postgres"
	redisrepo "github.com/drew/identity-service/internal/repository/redis"
	"github.com/drew/identity-service/internal/service"
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env file for local development
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisClient := redisrepo.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		// The cache is advisory; the service degrades to store-only reads.
		logger.Warn("redis unreachable, continuing without cache", "addr", cfg.RedisAddr, "error", err)
	}

	users := postgres.NewUserRepository(db)
	cache := redisrepo.NewSessionCache(redisClient)
	hasher := auth.NewPasswordHasher()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpirationHours)*time.Hour)

	identity := service.NewIdentityService(users, cache, hasher, tokens, logger, cfg)

	router := api.NewRouter(identity, tokens)

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
