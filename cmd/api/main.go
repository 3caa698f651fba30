package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"screening-agent/internal/auth"
	"screening-agent/internal/config"
	"screening-agent/internal/telephony"
	"screening-agent/pkg/logger"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	app, err := build(rootCtx, cfg, log)
	if err != nil {
		log.Error("service init failed", "err", err)
		os.Exit(1)
	}
	defer app.Close()

	if missing := cfg.TelephonyMissing(); len(missing) > 0 {
		log.Warn("telephony not configured; call placement disabled", "kind", "configuration_error", "missing", missing)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	var signature gin.HandlerFunc
	if cfg.Twilio.ValidateSignature {
		signature = telephony.SignatureMiddleware(cfg.Twilio.AuthToken, cfg.App.PublicBaseURL)
	}
	registerPublicRoutes(r, app.webhooks, signature)
	registerProtectedRoutes(r, auth.RequireAccessToken(authManager), app.sessions)

	go app.pruneLoop(rootCtx, 10*time.Minute)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "public_base_url", cfg.App.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	app.registry.Wait()
}
