package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/KhichiDushyant/voice-agent/cmd/mainconfig"
	"github.com/KhichiDushyant/voice-agent/internal/api/router"
	appconfig "github.com/KhichiDushyant/voice-agent/internal/config"
	"github.com/KhichiDushyant/voice-agent/internal/directory"
	"github.com/KhichiDushyant/voice-agent/internal/http/handlers"
	"github.com/KhichiDushyant/voice-agent/internal/notify"
	"github.com/KhichiDushyant/voice-agent/internal/observability/metrics"
	"github.com/KhichiDushyant/voice-agent/internal/records"
	"github.com/KhichiDushyant/voice-agent/internal/scheduling"
	"github.com/KhichiDushyant/voice-agent/internal/session"
	"github.com/KhichiDushyant/voice-agent/internal/telephony"
	"github.com/KhichiDushyant/voice-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting voice-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}

	redisClient := connectRedis(cfg)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Live call mirroring degrades gracefully without Redis.
		logger.Warn("redis unreachable, live call state disabled", "error", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Stores and services
	callStore := records.NewStore(pool)
	directoryRepo := directory.NewRepository(pool)
	scheduleService := scheduling.NewService(scheduling.NewRepository(pool), logger)
	liveStore := session.NewLiveStore(redisClient)
	audioWriter := records.NewAudioWriter(cfg.CallAudioDir, cfg.ResampleRecording)
	archiveStore := buildArchive(ctx, cfg, logger)

	notifyRepo := notify.NewRepository(pool)
	var emailSender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		emailSender = sg
	}
	dispatcher := notify.NewDispatcher(notifyRepo, directoryRepo, emailSender, logger)
	go dispatcher.Run(ctx, 30*time.Second)

	twilioClient := telephony.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)

	metricsHandler, callMetrics := setupCallMetrics()

	sessionOpts := session.Options{
		Logger:           logger,
		Records:          callStore,
		Directory:        directoryRepo,
		Scheduler:        scheduleService,
		Live:             liveStore,
		Audio:            audioWriter,
		Archive:          archiveStore,
		Metrics:          callMetrics,
		Model:            cfg.RealtimeModel,
		Voice:            cfg.RealtimeVoice,
		SlotDurationMins: cfg.SlotDurationMins,
		AvailabilityDays: cfg.AvailabilityDays,
		GreetingDelay:    cfg.GreetingDelay,
		SilenceTimeout:   cfg.SilenceTimeout,
		MaxCallDuration:  cfg.MaxCallDuration,
		WatchdogInterval: cfg.WatchdogInterval,
		SaveAudio:        cfg.SaveCallAudio,
	}

	routerCfg := &router.Config{
		Logger:          logger,
		Health:          handlers.NewHealthHandler(pgxPinger{pool}, redisPinger{redisClient}),
		Calls:           handlers.NewCallsHandler(callStore, twilioClient, liveStore, audioWriter, cfg.PublicBaseURL, logger),
		MediaStream:     handlers.NewMediaStreamHandler(cfg.RealtimeURL, cfg.OpenAIAPIKey, sessionOpts, callMetrics, logger),
		Directory:       handlers.NewDirectoryHandler(directoryRepo, logger),
		Appointments:    handlers.NewAppointmentsHandler(scheduleService, cfg.SlotDurationMins, logger),
		MetricsHandler:  metricsHandler,
		AdminAuthSecret: cfg.AdminJWTSecret,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // media stream connections are long-lived
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func connectRedis(cfg *appconfig.Config) *redis.Client {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return redis.NewClient(opts)
}

// buildArchive returns a disabled store when no bucket is configured.
func buildArchive(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *records.ArchiveStore {
	if cfg.ArchiveBucket == "" {
		return records.NewArchiveStore(nil, "", logger)
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("aws config load failed, call archival disabled", "error", err)
		return records.NewArchiveStore(nil, "", logger)
	}
	return records.NewArchiveStore(mainconfig.NewS3Client(awsCfg, cfg), cfg.ArchiveBucket, logger)
}

func setupCallMetrics() (http.Handler, *metrics.CallMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	callMetrics := metrics.NewCallMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), callMetrics
}

type pgxPinger struct{ pool *pgxpool.Pool }

func (p pgxPinger) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }
