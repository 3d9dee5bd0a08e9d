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

	httpadapter "github.com/kirillkom/adaptive-rag/internal/adapters/http"
	"github.com/kirillkom/adaptive-rag/internal/bootstrap"
	"github.com/kirillkom/adaptive-rag/internal/config"
	"github.com/kirillkom/adaptive-rag/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logging.Setup("adaptive-rag", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(cfg)
	if err != nil {
		slog.Error("bootstrap error", "error", err)
		os.Exit(1)
	}

	handler := httpadapter.NewRouter(app.IngestUC, app.ChatUC, app.Metrics, httpadapter.Config{
		Service:        "adaptive-rag",
		RequestTimeout: app.RequestTimeout(),
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		MaxConcurrent:  cfg.APIMaxConcurrent,
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: app.RequestTimeout() + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown error", "error", err)
	}
}
