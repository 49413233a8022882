package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/curaview/patient-portal/config"
	"github.com/curaview/patient-portal/internal/email"
	"github.com/curaview/patient-portal/internal/health"
	"github.com/curaview/patient-portal/internal/infrastructure/postgres"
	ctxlog "github.com/curaview/patient-portal/internal/log"
	"github.com/curaview/patient-portal/internal/maintenance"
	"github.com/curaview/patient-portal/internal/metrics"
	httptransport "github.com/curaview/patient-portal/internal/transport/http"
	"github.com/curaview/patient-portal/internal/transport/http/handler"
	"github.com/curaview/patient-portal/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	patientRepo := postgres.NewPatientRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)

	authority := usecase.NewTokenAuthority(tokenRepo)
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)
	account := usecase.NewAccountUsecase(patientRepo, tokenRepo, authority, sender, cfg.PortalBaseURL)

	secureCookies := cfg.Env != "local"
	authHandler := handler.NewAuthHandler(account, logger, secureCookies)
	accountHandler := handler.NewAccountHandler(account, logger, secureCookies)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	pruner := maintenance.NewPruner(tokenRepo, logger)
	if err := pruner.Start(); err != nil {
		stop()
		log.Fatalf("pruner: %v", err)
	}

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(logger, authHandler, accountHandler, authority),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	pruner.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
