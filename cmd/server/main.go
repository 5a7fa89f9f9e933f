package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"

	"indexflow-go/internal/config"
	"indexflow-go/internal/handler"
	"indexflow-go/internal/service"
	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/logger"
	"indexflow-go/pkg/sitemap"
	"indexflow-go/pkg/storage"
	"indexflow-go/pkg/submit"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "Configuration file path")
	)
	flag.Parse()

	cfg, err := config.NewManager().Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.SetLogger(logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		TimeFormat: cfg.Logger.TimeFormat,
	}))
	log := logger.GetLogger().WithField("component", "server")

	runner, err := buildRunner(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to assemble submission pipeline")
	}

	app := fiber.New(fiber.Config{
		AppName:               "indexflow",
		DisableStartupMessage: true,
	})
	handler.New(runner, handler.Config{
		BaseURL:           cfg.Site.BaseURL,
		IndexNowKey:       cfg.IndexNow.Key,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
	}).Register(app)

	var scheduler *cron.Cron
	if cfg.Schedule.Cron != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Schedule.Cron, func() {
			summary, err := runner.Run(context.Background())
			if err != nil {
				log.WithError(err).Warn("Scheduled run finished with errors")
				return
			}
			log.WithFields(map[string]interface{}{
				"run_id":  summary.RunID,
				"success": summary.Success,
				"message": summary.Message,
			}).Info("Scheduled run finished")
		})
		if err != nil {
			log.WithError(err).Fatal("Invalid cron expression")
		}
		scheduler.Start()
		log.WithField("cron", cfg.Schedule.Cron).Info("Scheduler started")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := app.Listen(addr); err != nil {
			log.WithError(err).Fatal("HTTP server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutdown signal received")
	if scheduler != nil {
		// Wait for an in-flight scheduled run before closing the server.
		<-scheduler.Stop().Done()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.WithError(err).Warn("Server shutdown was not clean")
	}
	log.Info("Server stopped")
}

// buildRunner wires storage, ledger, adapters, and the orchestrator from
// configuration.
func buildRunner(cfg *config.Config) (*service.Runner, error) {
	store, err := storage.NewFileStorage(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory: %w", err)
	}
	ledgerStore := ledger.NewStore(store)

	googleCfg := submit.GoogleConfig{
		ClientEmail: cfg.Google.ClientEmail,
		PrivateKey:  cfg.Google.PrivateKey,
		DailyLimit:  cfg.Google.DailyLimit,
		BatchSize:   cfg.Google.BatchSize,
	}
	if googleCfg.ClientEmail == "" && cfg.Google.CredentialsFile != "" {
		creds, err := submit.LoadGoogleCredentials(cfg.Google.CredentialsFile)
		if err != nil {
			// Missing credentials disable the adapter; the push adapter can
			// still run.
			logger.GetLogger().WithError(err).Warn("Google credentials unavailable, adapter disabled")
		} else {
			googleCfg.ClientEmail = creds.ClientEmail
			googleCfg.PrivateKey = creds.PrivateKey
		}
	}

	submitterCfg := submit.DefaultSubmitterConfig()
	if cfg.Submitter.PerURLDelayMs > 0 {
		submitterCfg.PerURLDelay = time.Duration(cfg.Submitter.PerURLDelayMs) * time.Millisecond
	}
	if cfg.Submitter.BatchDelayMs > 0 {
		submitterCfg.BatchDelay = time.Duration(cfg.Submitter.BatchDelayMs) * time.Millisecond
	}

	runner := service.NewRunner(
		cfg.Site.SitemapPath,
		sitemap.NewReader(cfg.Site.BaseURL),
		ledgerStore,
		submit.NewSubmitter(ledgerStore, submitterCfg),
		submit.NewGoogleAdapter(googleCfg),
		submit.NewIndexNowAdapter(submit.IndexNowConfig{
			BaseURL:     cfg.Site.BaseURL,
			Key:         cfg.IndexNow.Key,
			KeyLocation: cfg.IndexNow.KeyLocation,
			Endpoint:    cfg.IndexNow.Endpoint,
		}),
	)
	return runner, nil
}
