package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/clinicware/clinicops/internal/api/router"
	"github.com/clinicware/clinicops/internal/availability"
	appconfig "github.com/clinicware/clinicops/internal/config"
	"github.com/clinicware/clinicops/internal/doctors"
	"github.com/clinicware/clinicops/internal/events"
	"github.com/clinicware/clinicops/internal/notify"
	"github.com/clinicware/clinicops/internal/observability/metrics"
	"github.com/clinicware/clinicops/internal/patients"
	"github.com/clinicware/clinicops/internal/queue"
	"github.com/clinicware/clinicops/internal/reporting"
	"github.com/clinicware/clinicops/internal/scheduling"
	"github.com/clinicware/clinicops/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithWriter(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting clinicops API server", "env", cfg.Env, "port", cfg.Port)

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if cfg.AuthJWTSecret == "" {
		logger.Error("AUTH_JWT_SECRET is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Separate database/sql handle for the reporting queries.
	reportDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open reporting db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = reportDB.Close() }()

	var cache *availability.Cache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable, availability cache disabled", "error", err)
		} else {
			cache = availability.NewCache(redisClient, cfg.AvailabilityCacheTTL)
		}
	}

	m := metrics.NewSchedulingMetrics(nil)
	loc := cfg.Location()

	outboxStore := events.NewOutboxStore(pool)
	notifier := notify.NewOutboxNotifier(outboxStore, logger)
	deliverer := events.NewDeliverer(outboxStore, events.DeliveryHandlerFunc(func(ctx context.Context, entry events.OutboxEntry) error {
		logger.Info("queue notification delivered", "event_id", entry.ID, "type", entry.Type, "doctor_id", entry.DoctorID)
		return nil
	}), logger).
		WithBatchSize(int32(cfg.OutboxBatchSize)).
		WithInterval(cfg.OutboxPollInterval)
	go deliverer.Start(ctx)

	doctorStore := doctors.NewStore(pool, cache)
	patientStore := patients.NewStore(pool)
	queueStore := queue.NewStore(pool)
	apptStore := scheduling.NewStore(pool)

	queueService := queue.NewService(queueStore, doctorStore, patientStore, notifier, m, logger)
	apptService := scheduling.NewService(apptStore, doctorStore, patientStore, queueService, loc, m, logger)
	statsRepo := reporting.NewStatsRepository(reportDB, loc)

	r := router.New(&router.Config{
		Logger:              logger,
		AuthSecret:          cfg.AuthJWTSecret,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerSecond:  cfg.RateLimitPerSecond,
		RateLimitBurst:      cfg.RateLimitBurst,
		AppointmentsHandler: scheduling.NewHandler(apptService, logger),
		QueueHandler:        queue.NewHandler(queueService, logger),
		DoctorsHandler:      doctors.NewHandler(doctorStore, logger),
		StatsHandler:        reporting.NewStatsHandler(statsRepo, logger),
		MetricsHandler:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
