// devserverd serves the in-memory companion backend for local development.
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

	"github.com/joho/godotenv"

	"github.com/mindhaven/companion/internal/config"
	"github.com/mindhaven/companion/internal/devserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var responder devserver.Responder
	if cfg.Assistant.OpenAIKey != "" {
		responder = devserver.NewOpenAIResponder(cfg.Assistant.OpenAIKey, cfg.Assistant.Model)
		slog.Info("Assistant backed by chat completions", "model", cfg.Assistant.Model)
	} else {
		responder = devserver.NewCannedResponder()
		slog.Info("Assistant using canned replies (OPENAI_API_KEY not set)")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      devserver.NewServer(responder).Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // realtime chat connections stay open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Dev backend listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
