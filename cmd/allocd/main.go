// Command allocd exposes the allocation fetch workflow as a small HTTP
// daemon: trigger a refresh cycle, read the latest snapshot as JSON or CSV,
// and scrape Prometheus metrics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/staffbridge/allocation-client/internal/config"
	"github.com/staffbridge/allocation-client/pkg/allocation"
	"github.com/staffbridge/allocation-client/pkg/bulk"
	"github.com/staffbridge/allocation-client/pkg/client"
	"github.com/staffbridge/allocation-client/pkg/export"
	"github.com/staffbridge/allocation-client/pkg/fanout"
	"github.com/staffbridge/allocation-client/pkg/logging"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	// .env files are optional; real environments set variables directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.Logging.Level),
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	}).With().Str("component", "allocd").Logger()

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Daemon exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return err
	}
	logger.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")

	clientCfg := client.DefaultConfig(redisClient, cfg.API.BaseURL)
	clientCfg.APIToken = cfg.API.Token
	if cfg.API.UserAgent != "" {
		clientCfg.UserAgent = cfg.API.UserAgent
	}

	apiClient, err := client.New(clientCfg)
	if err != nil {
		return err
	}
	defer apiClient.Close()

	coordinator := bulk.NewCoordinator(
		bulk.NewClient(apiClient),
		fanout.Config{
			BatchSize:       cfg.Fallback.BatchSize,
			InterBatchDelay: cfg.Fallback.InterBatchDelay,
			Timeout:         cfg.Fallback.Timeout,
		},
		bulk.PollConfig{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/reports", refreshHandler(coordinator, logger))
	mux.HandleFunc("GET /v1/reports/latest", latestHandler(coordinator))
	mux.HandleFunc("GET /v1/reports/latest.csv", latestCSVHandler(coordinator, logger))
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Server.ListenAddr).Msg("Starting report server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// snapshotResponse is the JSON shape served for a published snapshot.
type snapshotResponse struct {
	CycleID     string             `json:"cycle_id"`
	Source      bulk.Source        `json:"source"`
	RefreshedAt time.Time          `json:"refreshed_at"`
	StartPeriod string             `json:"start_period"`
	EndPeriod   string             `json:"end_period"`
	Allocations allocation.Grouped `json:"allocations"`
}

func writeSnapshot(w http.ResponseWriter, snapshot *bulk.Snapshot) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshotResponse{
		CycleID:     snapshot.CycleID,
		Source:      snapshot.Source,
		RefreshedAt: snapshot.RefreshedAt,
		StartPeriod: snapshot.Request.StartPeriod,
		EndPeriod:   snapshot.Request.EndPeriod,
		Allocations: snapshot.Grouped,
	})
}

func refreshHandler(coordinator *bulk.Coordinator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulk.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if req.StartPeriod == "" || req.EndPeriod == "" {
			http.Error(w, "start_period and end_period are required", http.StatusBadRequest)
			return
		}

		if _, err := coordinator.Refresh(r.Context(), req); err != nil {
			logger.Error().Err(err).Msg("Refresh cycle failed")
			http.Error(w, "refresh failed: "+err.Error(), http.StatusBadGateway)
			return
		}

		snapshot, ok := coordinator.Latest()
		if !ok {
			// A concurrent newer cycle may still be in flight.
			http.Error(w, "no snapshot available", http.StatusServiceUnavailable)
			return
		}
		writeSnapshot(w, snapshot)
	}
}

func latestHandler(coordinator *bulk.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, ok := coordinator.Latest()
		if !ok {
			http.Error(w, "no report generated yet", http.StatusNotFound)
			return
		}
		writeSnapshot(w, snapshot)
	}
}

func latestCSVHandler(coordinator *bulk.Coordinator, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, ok := coordinator.Latest()
		if !ok {
			http.Error(w, "no report generated yet", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="allocations.csv"`)
		if err := export.WriteCSV(w, snapshot.Grouped); err != nil {
			logger.Error().Err(err).Msg("Failed to write CSV export")
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
