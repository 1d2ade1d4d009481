package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-scheduler/internal/api/router"
	"github.com/wolfman30/clinic-scheduler/internal/app/bootstrap"
	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/booking"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/dedup"
	"github.com/wolfman30/clinic-scheduler/internal/emr"
	"github.com/wolfman30/clinic-scheduler/internal/http/handlers"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/patients"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-scheduler API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"dedup_backend", cfg.DedupBackend,
	)

	metricsHandler, schedMetrics := setupMetrics()

	appCtx, stop := context.WithCancel(context.Background())
	defer stop()

	handler, cleanup, err := buildHandler(appCtx, cfg, logger, schedMetrics, metricsHandler)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics builds a dedicated registry so tests can construct it more
// than once without duplicate registration panics.
func setupMetrics() (http.Handler, *metrics.SchedulingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewSchedulingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}

// buildHandler wires the upstream client, services and router. ctx must live
// as long as the handler; background sweeps stop when it is done. The
// returned cleanup releases the dedup store's connections.
func buildHandler(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.SchedulingMetrics, metricsHandler http.Handler) (http.Handler, func(), error) {
	client, err := emr.New(emr.Config{
		BaseURL:      cfg.EkaBaseURL,
		ClientID:     cfg.EkaClientID,
		ClientSecret: cfg.EkaClientSecret,
		APIKey:       cfg.EkaAPIKey,
		AccessToken:  cfg.EkaAccessToken,
		Timeout:      cfg.UpstreamTimeout,
		Logger:       logger.With("component", "emr"),
		Metrics:      m,
	})
	if err != nil {
		return nil, nil, err
	}

	loc, err := booking.FixedZone(cfg.BookingUTCOffset)
	if err != nil {
		return nil, nil, fmt.Errorf("BOOKING_UTC_OFFSET: %w", err)
	}

	store, err := bootstrap.BuildDedupStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("dedup store ready", "backend", store.Backend, "capacity", cfg.DedupCapacity)
	deduplicator := dedup.New(store.Store, cfg.DedupCapacity, m, logger.With("component", "dedup"))

	availabilitySvc := availability.NewService(client, availability.Config{
		WindowDays:   cfg.AvailabilityWindowDays,
		LookbackDays: cfg.AvailabilityLookbackDays,
		Concurrency:  cfg.AvailabilityFetchConcurrency,
		Currency:     cfg.PricingCurrency,
	}, m, logger.With("component", "availability"))
	orchestrator := booking.NewOrchestrator(client, booking.Config{
		Location:     loc,
		AlternateCap: cfg.AlternateSlotCap,
	}, m, logger.With("component", "booking"))
	patientSvc := patients.NewService(client, deduplicator, logger.With("component", "patients"))

	scheduling := handlers.NewSchedulingHandler(handlers.SchedulingConfig{
		Availability: availabilitySvc,
		Booking:      orchestrator,
		Patients:     patientSvc,
		Dedup:        deduplicator,
		Logger:       logger.With("component", "http"),
	})

	h := router.New(&router.Config{
		Context:            ctx,
		Logger:             logger,
		Scheduling:         scheduling,
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		APIJWTSecret:       cfg.APIJWTSecret,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	return h, store.Close, nil
}
