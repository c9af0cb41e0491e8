package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicwatch/civicwatch/internal/ai"
	"github.com/civicwatch/civicwatch/internal/alert"
	"github.com/civicwatch/civicwatch/internal/config"
	"github.com/civicwatch/civicwatch/internal/jobs"
	"github.com/civicwatch/civicwatch/internal/metrics"
	"github.com/civicwatch/civicwatch/internal/model"
	"github.com/civicwatch/civicwatch/internal/search"
	"github.com/civicwatch/civicwatch/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "civicwatch",
	Short: "Civic issue radar for municipal social mentions",
	Long:  "CivicWatch polls mentions of a municipal account, classifies citizen complaints into issue records, and enriches published posts with reply sentiment.",
	// Default to `start` so that `civicwatch` with no args runs the daemon.
	// This preserves compatibility with systemd unit files that invoke the binary directly.
	RunE: runStart,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: CIVICWATCH_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > CIVICWATCH_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("CIVICWATCH_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupAlerter(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Alerter {
	switch cfg.Alerting.Type {
	case "slack":
		logger.Info("using slack alerter")
		return alert.NewSlackAlerter(cfg.Alerting.WebhookURL, httpClient, logger)
	default:
		return alert.NewLogAlerter(logger)
	}
}

// pipeline bundles everything a command needs to run the jobs. Close must be
// called when done.
type pipeline struct {
	store      store.Store
	metrics    *metrics.Metrics
	discovery  *jobs.DiscoveryJob
	enrichment *jobs.EnrichmentJob
}

func (p *pipeline) Close() error {
	return p.store.Close()
}

// buildPipeline wires the search client, the AI provider, the store, and
// both jobs from config.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	searchClient := search.NewClient(cfg.Search.BaseURL, cfg.Search.BearerToken,
		&http.Client{Timeout: cfg.Search.Timeout})

	provider := ai.NewGeminiProvider(cfg.AI.BaseURL, cfg.AI.APIKey, cfg.AI.Model,
		&http.Client{Timeout: cfg.AI.Timeout})
	classifier := ai.NewIssueClassifier(provider, ai.IssueExtractionTemplate, logger)
	summarizer := ai.NewSentimentSummarizer(provider, ai.SentimentSummaryTemplate, logger)

	alerter := setupAlerter(cfg, &http.Client{Timeout: cfg.Search.Timeout}, logger)
	m := metrics.New()

	discovery := jobs.NewDiscoveryJob(searchClient, st, st, classifier, alerter, m, logger, jobs.DiscoveryConfig{
		AccountUsername: cfg.Search.AccountUsername,
		MaxResults:      cfg.Search.MaxResults,
		ItemDelay:       cfg.Polling.ItemDelay,
		ServiceUserID:   cfg.Store.ServiceUserID,
	})

	enrichment := jobs.NewEnrichmentJob(searchClient, st, summarizer, alerter, m, logger, jobs.EnrichmentConfig{
		AccountUsername: cfg.Search.AccountUsername,
		BatchSize:       cfg.Polling.EnrichmentBatchSize,
		ItemDelay:       cfg.Polling.ItemDelay,
	})

	return &pipeline{
		store:      st,
		metrics:    m,
		discovery:  discovery,
		enrichment: enrichment,
	}, nil
}
