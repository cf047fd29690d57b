package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/senseai/conversation-gateway/internal/config"
	"github.com/senseai/conversation-gateway/internal/emotion"
	"github.com/senseai/conversation-gateway/internal/intelligence"
	"github.com/senseai/conversation-gateway/internal/observability"
	"github.com/senseai/conversation-gateway/internal/session"
	"github.com/senseai/conversation-gateway/internal/stt"
	"github.com/senseai/conversation-gateway/internal/tts"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Conversation Gateway Service starting")

	transcriber, err := stt.NewTranscriber(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create transcriber")
	}

	var classifier emotion.Classifier
	humeClient := emotion.NewHumeClient(cfg)
	if humeClient.Configured() {
		classifier = humeClient
	} else {
		logger.Warn().Msg("Hume API key not set, tone analysis disabled")
	}

	var simplifier intelligence.Simplifier
	claudeClient, err := intelligence.NewClaudeClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create intelligence client")
	}
	if claudeClient.Configured() {
		simplifier = claudeClient
	} else {
		logger.Warn().Msg("Anthropic API key not set, simplification disabled")
	}

	synthesizer := tts.NewElevenLabsClient(cfg)

	// Create HTTP server
	mux := http.NewServeMux()

	// Conversation WebSocket endpoint, one session per connection
	mux.HandleFunc("/ws/conversation", session.Handler(cfg, transcriber, classifier, simplifier))

	// Quick-reply synthesis endpoint
	mux.HandleFunc("/tts", tts.Handler(synthesizer))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint: configuration-level checks only, no paid API calls
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"stt": func(ctx context.Context) (bool, error) {
			if transcriber == nil {
				return false, fmt.Errorf("transcriber not configured")
			}
			return true, nil
		},
		"tone_classifier": func(ctx context.Context) (bool, error) {
			return humeClient.Configured(), nil
		},
		"tts": func(ctx context.Context) (bool, error) {
			return synthesizer.Configured(), nil
		},
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. WebSocket upgrades bypass the
	// read/write timeouts once hijacked.
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws/conversation", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
