package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/creatorhub/sessiond/internal/api"
	"github.com/creatorhub/sessiond/internal/auth"
	"github.com/creatorhub/sessiond/internal/config"
	httphandler "github.com/creatorhub/sessiond/internal/http"
	"github.com/creatorhub/sessiond/internal/http/handlers"
	"github.com/creatorhub/sessiond/internal/logger"
	"github.com/creatorhub/sessiond/internal/middleware"
	"github.com/creatorhub/sessiond/internal/storage"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Init("sessiond", false)
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Init("sessiond", cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Options{
		Driver:        cfg.Storage.Driver,
		SQLitePath:    cfg.Storage.SQLitePath,
		DatabaseURL:   cfg.Storage.DatabaseURL,
		RedisAddr:     cfg.Redis.Addr,
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   cfg.Redis.KeyPrefix,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close storage")
		}
	}()

	client := api.NewHTTPClient(api.HTTPClientConfig{BaseURL: cfg.API.BaseURL, Timeout: cfg.API.Timeout}, nil)
	feed := auth.NewFeed(50)
	tracker := auth.NewConnectionTracker()
	manager := auth.NewManager(client, store, feed, tracker, auth.Options{
		LoginInterval:    cfg.Session.LoginInterval,
		RegisterInterval: cfg.Session.RegisterInterval,
		LogoutInterval:   cfg.Session.LogoutInterval,
		RefreshSkew:      cfg.Session.RefreshSkew,
		Now:              time.Now,
	})

	// mark a stored session as verifying before the first request is served
	if _, err := manager.LoadStored(ctx); err != nil {
		log.Error().Err(err).Msg("failed to read stored session")
		return
	}
	go func() {
		if err := manager.Restore(ctx); err != nil {
			log.Warn().Err(err).Msg("stored session could not be restored")
		}
	}()
	go manager.KeepFresh(ctx, cfg.Session.CheckInterval)

	limiter := middleware.NewRateLimiter(cfg.HTTP.RateWindow, cfg.HTTP.RateMax)
	go limiter.Run(ctx)

	router := httphandler.NewRouter(
		handlers.NewSessionHandler(manager, feed, tracker),
		handlers.NewAchievementHandler(),
		manager,
		limiter,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// backend calls may take up to API_TIMEOUT
		WriteTimeout: cfg.API.Timeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("api", cfg.API.BaseURL).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}
	log.Info().Msg("server exited")
}
