package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"indexflow-go/internal/service"
	"indexflow-go/pkg/ledger"
	"indexflow-go/pkg/logger"
	"indexflow-go/pkg/sitemap"
	"indexflow-go/pkg/storage"
	"indexflow-go/pkg/submit"
)

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func main() {
	// Environment variable defaults (CI scheduler friendly)
	defaultBaseURL := getEnvOrDefault("SITE_BASE_URL", "")
	defaultSitemapPath := getEnvOrDefault("SITEMAP_PATH", "public/sitemap-index.xml")
	defaultDataDir := getEnvOrDefault("DATA_DIR", "data")
	defaultCredentialsFile := getEnvOrDefault("GOOGLE_CREDENTIALS_FILE", "")
	defaultClientEmail := getEnvOrDefault("GOOGLE_CLIENT_EMAIL", "")
	defaultPrivateKey := getEnvOrDefault("GOOGLE_PRIVATE_KEY", "")
	defaultDailyLimit := getEnvIntOrDefault("GOOGLE_DAILY_LIMIT", 200)
	defaultBatchSize := getEnvIntOrDefault("GOOGLE_BATCH_SIZE", 10)
	defaultIndexNowKey := getEnvOrDefault("INDEXNOW_KEY", "")
	defaultPerURLDelay := getEnvIntOrDefault("PER_URL_DELAY_MS", 1000)
	defaultBatchDelay := getEnvIntOrDefault("BATCH_DELAY_MS", 2000)

	// Command line flags (override environment variables)
	var (
		baseURL         = flag.String("base-url", defaultBaseURL, "Site base URL, e.g. https://example.com (env: SITE_BASE_URL)")
		sitemapPath     = flag.String("sitemap", defaultSitemapPath, "Path to the local sitemap index file (env: SITEMAP_PATH)")
		dataDir         = flag.String("data-dir", defaultDataDir, "Directory for the submission ledger (env: DATA_DIR)")
		credentialsFile = flag.String("google-credentials", defaultCredentialsFile, "Google service-account key file (env: GOOGLE_CREDENTIALS_FILE)")
		clientEmail     = flag.String("google-client-email", defaultClientEmail, "Google service-account email (env: GOOGLE_CLIENT_EMAIL)")
		privateKey      = flag.String("google-private-key", defaultPrivateKey, "Google service-account private key PEM (env: GOOGLE_PRIVATE_KEY)")
		dailyLimit      = flag.Int("google-daily-limit", defaultDailyLimit, "Google Indexing API daily quota (env: GOOGLE_DAILY_LIMIT)")
		batchSize       = flag.Int("google-batch-size", defaultBatchSize, "URLs per Google submission batch (env: GOOGLE_BATCH_SIZE)")
		indexNowKey     = flag.String("indexnow-key", defaultIndexNowKey, "IndexNow key; empty disables the adapter (env: INDEXNOW_KEY)")
		perURLDelay     = flag.Int("per-url-delay-ms", defaultPerURLDelay, "Pause between per-URL submissions (env: PER_URL_DELAY_MS)")
		batchDelay      = flag.Int("batch-delay-ms", defaultBatchDelay, "Pause between submission batches (env: BATCH_DELAY_MS)")
		help            = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *help {
		printUsage()
		return
	}

	log := logger.GetLogger().WithField("component", "main")

	if *baseURL == "" {
		fmt.Println("ERROR: Site base URL is required.")
		fmt.Println("Use -base-url flag or SITE_BASE_URL environment variable.")
		fmt.Println("")
		printUsage()
		os.Exit(1)
	}

	googleCfg := submit.GoogleConfig{
		ClientEmail: *clientEmail,
		PrivateKey:  *privateKey,
		DailyLimit:  *dailyLimit,
		BatchSize:   *batchSize,
	}
	if googleCfg.ClientEmail == "" && *credentialsFile != "" {
		creds, err := submit.LoadGoogleCredentials(*credentialsFile)
		if err != nil {
			log.WithError(err).Warn("Google credentials unavailable, adapter disabled")
		} else {
			googleCfg.ClientEmail = creds.ClientEmail
			googleCfg.PrivateKey = creds.PrivateKey
		}
	}

	store, err := storage.NewFileStorage(*dataDir)
	if err != nil {
		log.WithError(err).Fatal("Failed to open data directory")
	}
	ledgerStore := ledger.NewStore(store)

	runner := service.NewRunner(
		*sitemapPath,
		sitemap.NewReader(*baseURL),
		ledgerStore,
		submit.NewSubmitter(ledgerStore, submit.SubmitterConfig{
			PerURLDelay: time.Duration(*perURLDelay) * time.Millisecond,
			BatchDelay:  time.Duration(*batchDelay) * time.Millisecond,
		}),
		submit.NewGoogleAdapter(googleCfg),
		submit.NewIndexNowAdapter(submit.IndexNowConfig{
			BaseURL: *baseURL,
			Key:     *indexNowKey,
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	log.Info("Starting submission run")
	startTime := time.Now()

	summary, runErr := runner.Run(ctx)
	duration := time.Since(startTime)

	log.WithFields(map[string]interface{}{
		"run_id":   summary.RunID,
		"success":  summary.Success,
		"message":  summary.Message,
		"duration": duration.String(),
	}).Info("Submission run finished")

	fmt.Printf("\n=== Submission Run Results ===\n")
	fmt.Printf("Run ID: %s\n", summary.RunID)
	fmt.Printf("Success: %t\n", summary.Success)
	fmt.Printf("Message: %s\n", summary.Message)
	fmt.Printf("Duration: %s\n", duration.String())
	if summary.Details != nil {
		if g := summary.Details.GoogleIndexing; g != nil {
			fmt.Printf("Google: %d submitted, %d failed", g.Success, g.Failed)
			if g.RateLimitHit {
				fmt.Printf(" (quota reached, run resumes tomorrow)")
			}
			fmt.Printf("\n")
		}
		if n := summary.Details.IndexNow; n != nil {
			fmt.Printf("IndexNow: %s\n", n.Message)
		}
	}
	if summary.Error != "" {
		fmt.Printf("Error: %s\n", summary.Error)
	}

	// Quota exhaustion is a normal outcome for a large sitemap; only broken
	// credentials should fail the scheduled job so the operator notices.
	var authErr *submit.AuthorizationError
	if errors.As(runErr, &authErr) {
		log.WithError(runErr).Error("Authorization failed")
		fmt.Printf("Hint: %s\n", authErr.Hint)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("indexflow - search engine URL submission pipeline")
	fmt.Println("")
	fmt.Println("USAGE:")
	fmt.Println("    ./indexflow -base-url <URL> [OPTIONS]")
	fmt.Println("    ./indexflow  # Uses environment variables")
	fmt.Println("")
	fmt.Println("REQUIRED:")
	fmt.Println("    -base-url string             Site base URL (env: SITE_BASE_URL)")
	fmt.Println("")
	fmt.Println("OPTIONS:")
	fmt.Println("    -sitemap string              Local sitemap index path (default: public/sitemap-index.xml, env: SITEMAP_PATH)")
	fmt.Println("    -data-dir string             Ledger directory (default: data, env: DATA_DIR)")
	fmt.Println("    -google-credentials string   Service-account key file (env: GOOGLE_CREDENTIALS_FILE)")
	fmt.Println("    -google-client-email string  Service-account email (env: GOOGLE_CLIENT_EMAIL)")
	fmt.Println("    -google-private-key string   Service-account private key (env: GOOGLE_PRIVATE_KEY)")
	fmt.Println("    -google-daily-limit int      Daily quota (default: 200, env: GOOGLE_DAILY_LIMIT)")
	fmt.Println("    -google-batch-size int       Batch size (default: 10, env: GOOGLE_BATCH_SIZE)")
	fmt.Println("    -indexnow-key string         IndexNow key (env: INDEXNOW_KEY)")
	fmt.Println("    -per-url-delay-ms int        Delay between URLs (default: 1000, env: PER_URL_DELAY_MS)")
	fmt.Println("    -batch-delay-ms int          Delay between batches (default: 2000, env: BATCH_DELAY_MS)")
	fmt.Println("    -help                        Show this help message")
	fmt.Println("")
	fmt.Println("EXAMPLES:")
	fmt.Println("    # Command line usage")
	fmt.Println("    ./indexflow -base-url \"https://example.com\" -google-credentials key.json")
	fmt.Println("")
	fmt.Println("    # Scheduled CI job")
	fmt.Println("    env:")
	fmt.Println("      SITE_BASE_URL: https://example.com")
	fmt.Println("      GOOGLE_CLIENT_EMAIL: ${{ secrets.GOOGLE_CLIENT_EMAIL }}")
	fmt.Println("      GOOGLE_PRIVATE_KEY: ${{ secrets.GOOGLE_PRIVATE_KEY }}")
	fmt.Println("      INDEXNOW_KEY: ${{ secrets.INDEXNOW_KEY }}")
	fmt.Println("")
	fmt.Println("BEHAVIOR:")
	fmt.Println("- Progress survives restarts: a quota halt resumes where it left off")
	fmt.Println("- Already-submitted URLs are skipped for the rest of the day")
	fmt.Println("- Exit code is non-zero only for authorization failures")
}
