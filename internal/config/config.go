package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Backend collaborator.
	BackendURL       string
	BackendTimeout   time.Duration
	BackendRateLimit float64
	BackendRateBurst int

	// Retry policy for the initial loads and the readiness gate.
	HealthRetryInterval time.Duration
	RetryBase           time.Duration
	RetryFactor         float64
	RetryMax            time.Duration

	// Playback defaults.
	MinConfidence      string
	PlaybackMode       string
	HistoryDefaultDays int

	// Snapshot publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// KafkaEnabled reports whether snapshot publishing is configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parsePositiveDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	backendTimeout, err := parsePositiveDuration("BACKEND_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}
	healthInterval, err := parsePositiveDuration("HEALTH_RETRY_INTERVAL", "3s")
	if err != nil {
		return nil, err
	}
	retryBase, err := parsePositiveDuration("RETRY_BASE", "1s")
	if err != nil {
		return nil, err
	}
	retryMax, err := parsePositiveDuration("RETRY_MAX", "30s")
	if err != nil {
		return nil, err
	}
	if retryMax < retryBase {
		return nil, errors.New("RETRY_MAX must be >= RETRY_BASE")
	}

	retryFactor, err := parseFloat("RETRY_FACTOR", "1.7")
	if err != nil || retryFactor < 1 {
		return nil, errors.New("invalid RETRY_FACTOR")
	}
	rateLimit, err := parseFloat("BACKEND_RATE_LIMIT", "5")
	if err != nil || rateLimit <= 0 {
		return nil, errors.New("invalid BACKEND_RATE_LIMIT")
	}
	rateBurst, err := strconv.Atoi(envOrDefault("BACKEND_RATE_BURST", "5"))
	if err != nil || rateBurst < 1 {
		return nil, errors.New("invalid BACKEND_RATE_BURST")
	}
	historyDays, err := strconv.Atoi(envOrDefault("HISTORY_DEFAULT_DAYS", "7"))
	if err != nil || historyDays < 1 || historyDays > 7 {
		return nil, errors.New("invalid HISTORY_DEFAULT_DAYS: must be between 1 and 7")
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		BackendURL:       strings.TrimRight(envOrDefault("BACKEND_URL", "http://127.0.0.1:8089"), "/"),
		BackendTimeout:   backendTimeout,
		BackendRateLimit: rateLimit,
		BackendRateBurst: rateBurst,

		HealthRetryInterval: healthInterval,
		RetryBase:           retryBase,
		RetryFactor:         retryFactor,
		RetryMax:            retryMax,

		MinConfidence:      strings.ToLower(strings.TrimSpace(os.Getenv("MIN_CONFIDENCE"))),
		PlaybackMode:       envOrDefault("PLAYBACK_MODE", "per_day"),
		HistoryDefaultDays: historyDays,

		KafkaBrokers:       parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSnapshotTopic: envOrDefault("KAFKA_SNAPSHOT_TOPIC", "fire-timeline-snapshots"),
	}

	if u, err := url.Parse(cfg.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid BACKEND_URL")
	}
	switch cfg.MinConfidence {
	case "", "l", "n", "h":
	default:
		return nil, fmt.Errorf("invalid MIN_CONFIDENCE %q: must be one of l, n, h", cfg.MinConfidence)
	}
	switch cfg.PlaybackMode {
	case "per_day", "cumulative":
	default:
		return nil, fmt.Errorf("invalid PLAYBACK_MODE %q: must be per_day or cumulative", cfg.PlaybackMode)
	}
	if cfg.KafkaEnabled() && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseFloat(key, fallback string) (float64, error) {
	return strconv.ParseFloat(envOrDefault(key, fallback), 64)
}
