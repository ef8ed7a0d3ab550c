package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nseingest/internal/api"
	"nseingest/internal/config"
	"nseingest/internal/database"
	"nseingest/internal/events"
	"nseingest/internal/ingest"
	"nseingest/internal/logging"
	"nseingest/internal/nse"
	"nseingest/internal/runlock"
	"nseingest/internal/sched"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	migrationsPath := flag.String("migrations", "db/migrations", "path to the database migrations")
	serve := flag.Bool("serve", false, "run the status API and cron schedule instead of a single pass")
	flag.Parse()

	if err := run(*configPath, *migrationsPath, *serve); err != nil {
		fmt.Fprintf(os.Stderr, "nseingest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, migrationsPath string, serve bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg.ApplyDateDefaults(time.Now())

	logger := logging.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	clientOpts := []nse.ClientOption{nse.WithLogger(logger)}
	if cfg.NSE.BaseURL != "" {
		clientOpts = append(clientOpts, nse.WithBaseURL(cfg.NSE.BaseURL))
	}
	if cfg.NSE.TimeoutSeconds > 0 {
		clientOpts = append(clientOpts, nse.WithTimeout(time.Duration(cfg.NSE.TimeoutSeconds)*time.Second))
	}
	if cfg.NSE.RateLimitPerSec > 0 {
		clientOpts = append(clientOpts, nse.WithRateLimit(cfg.NSE.RateLimitPerSec))
	}
	client := nse.NewClient(clientOpts...)

	pipelineOpts := []ingest.Option{}

	if cfg.DatabaseEnabled() {
		db, err := database.New(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(migrationsPath); err != nil {
			return err
		}
		pipelineOpts = append(pipelineOpts, ingest.WithRepository(db))
		logger.Info().Str("host", cfg.Database.Host).Msg("database ingestion enabled")
	}

	if cfg.KafkaEnabled() {
		producer := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		pipelineOpts = append(pipelineOpts, ingest.WithPublisher(producer))
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("event publishing enabled")
	}

	pipeline := ingest.New(cfg, client, logger, pipelineOpts...)

	runOnce := func(ctx context.Context) {
		if cfg.RedisEnabled() {
			hostname, _ := os.Hostname()
			lock := runlock.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				fmt.Sprintf("%s-%d", hostname, os.Getpid()), 2*time.Hour)
			defer lock.Close()

			if err := lock.Acquire(ctx); err != nil {
				if errors.Is(err, runlock.ErrAlreadyLocked) {
					logger.Warn().Msg("skipping run, another instance holds the lock")
					return
				}
				logger.Error().Err(err).Msg("failed to acquire run lock")
				return
			}
			defer func() {
				if err := lock.Release(context.Background()); err != nil {
					logger.Warn().Err(err).Msg("failed to release run lock")
				}
			}()
		}

		if _, err := pipeline.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("ingestion run failed")
		}
	}

	if !serve {
		runOnce(ctx)
		return nil
	}

	scheduler := sched.New(logger)
	if cfg.Schedule != "" {
		if err := scheduler.Register(ctx, cfg.Schedule, runOnce); err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := api.SetupRoutes(api.NewHandler(cfg.MetadataFile, logger))
	server := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", server.Addr).Msg("status API listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
