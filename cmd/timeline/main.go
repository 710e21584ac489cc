package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/fire-timeline-service/internal/adapter/backend"
	httpadapter "github.com/couchcryptid/fire-timeline-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/fire-timeline-service/internal/adapter/kafka"
	"github.com/couchcryptid/fire-timeline-service/internal/config"
	"github.com/couchcryptid/fire-timeline-service/internal/domain"
	"github.com/couchcryptid/fire-timeline-service/internal/fetch"
	"github.com/couchcryptid/fire-timeline-service/internal/observability"
	"github.com/couchcryptid/fire-timeline-service/internal/playback"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := backend.NewClient(cfg, metrics, logger)

	// Snapshot publishing is feature-flagged via KAFKA_BROKERS.
	var (
		publisher playback.SnapshotPublisher
		writer    *kafkaadapter.Writer
	)
	if cfg.KafkaEnabled() {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("snapshot publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSnapshotTopic)
	} else {
		logger.Info("snapshot publishing disabled")
	}

	mode, err := domain.ParseMode(cfg.PlaybackMode)
	if err != nil {
		logger.Error("invalid playback mode", "error", err)
		os.Exit(1)
	}

	session := playback.New(playback.Settings{
		MinConfidence: domain.Confidence(cfg.MinConfidence),
		Mode:          mode,
		HistoryDays:   cfg.HistoryDefaultDays,
		Retry: fetch.Policy{
			Base:   cfg.RetryBase,
			Factor: cfg.RetryFactor,
			Max:    cfg.RetryMax,
		},
		HealthInterval: cfg.HealthRetryInterval,
	}, client, publisher, clockwork.NewRealClock(), logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, session, session, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the health gate and initial loads.
	go func() {
		if err := session.Run(ctx); err != nil {
			logger.Error("playback session error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
