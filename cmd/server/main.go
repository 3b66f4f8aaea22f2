package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/assessment-session/internal/client"
	"github.com/stemsi/assessment-session/internal/config"
	"github.com/stemsi/assessment-session/internal/handler"
	"github.com/stemsi/assessment-session/internal/logger"
	"github.com/stemsi/assessment-session/internal/router"
	"github.com/stemsi/assessment-session/internal/service"
	"github.com/stemsi/assessment-session/internal/store"
	"github.com/stemsi/assessment-session/internal/validator"
	"github.com/stemsi/assessment-session/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("session_store", cfg.SessionStore).
		Str("shortlisting_api", cfg.ShortlistingAPIBase).
		Msg("Starting assessment session host")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect Session Store ─────────────────────────────────────────
	sessionStore, closeStore, err := store.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open session store")
	}
	defer closeStore()

	// ─── Initialize Services ───────────────────────────────────────────
	api := client.NewHTTPClient(cfg.ShortlistingAPIBase, nil, cfg.ShortlistingTimeout)
	manager := service.NewSessionManager(api, sessionStore, log)

	// ─── Start Proctors ────────────────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	proctors := worker.NewProctorSupervisor(workerCtx, log)
	manager.OnCreate(func(sess *service.Session) {
		proctors.Attach(sess)
	})

	// ─── Initialize Handlers ───────────────────────────────────────────
	sessionHandler := handler.NewSessionHandler(manager, log)
	handlers := &router.Handlers{
		Session: sessionHandler,
		WS:      handler.NewWSHandler(sessionHandler, proctors, log, cfg.AllowedOrigins),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop proctors; forced submissions already in flight run to completion.
	workerCancel()
	proctors.Stop()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
