package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the CivicWatch pipeline.
type Config struct {
	Polling  PollingConfig
	Search   SearchConfig
	AI       AIConfig
	Store    StoreConfig
	Alerting AlertingConfig
	Metrics  MetricsConfig
}

// PollingConfig controls the two job schedules and per-item pacing.
type PollingConfig struct {
	DiscoveryInterval   time.Duration // how often the mention discovery job fires
	EnrichmentInterval  time.Duration // how often the engagement enrichment job fires
	ItemDelay           time.Duration // fixed delay between items within a run
	EnrichmentBatchSize int           // max posts enriched per cycle
}

// SearchConfig targets the external recent-search API.
type SearchConfig struct {
	BaseURL         string
	BearerToken     string
	AccountUsername string // monitored handle, leading @ stripped by Load
	MaxResults      int
	Timeout         time.Duration
}

// AIConfig targets the generative-text service used for extraction and
// sentiment summarization.
type AIConfig struct {
	BaseURL string
	Model   string
	APIKey  string // expanded from env var by Load
	Timeout time.Duration
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string // "sqlite" or "postgres"
	Path          string // sqlite database file
	DSN           string // postgres connection string
	ServiceUserID string // created_by identity for ingested issues
}

// AlertingConfig controls operator alerts for fatal configuration errors.
type AlertingConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

const (
	defaultSearchBaseURL = "https://api.x.com/2"
	defaultAIBaseURL     = "https://generativelanguage.googleapis.com/v1beta"
	defaultAIModel       = "gemini-2.0-flash"
	defaultMetricsAddr   = ":9091"
)

// rawConfig is used for YAML unmarshaling (snake_case fields, durations as strings).
type rawConfig struct {
	Polling  rawPollingConfig `yaml:"polling"`
	Search   rawSearchConfig  `yaml:"search"`
	AI       rawAIConfig      `yaml:"ai"`
	Store    rawStoreConfig   `yaml:"store"`
	Alerting AlertingConfig   `yaml:"alerting"`
	Metrics  MetricsConfig    `yaml:"metrics"`
}

type rawPollingConfig struct {
	DiscoveryInterval   string `yaml:"discovery_interval"`
	EnrichmentInterval  string `yaml:"enrichment_interval"`
	ItemDelay           string `yaml:"item_delay"`
	EnrichmentBatchSize int    `yaml:"enrichment_batch_size"`
}

type rawSearchConfig struct {
	BaseURL         string `yaml:"base_url"`
	BearerToken     string `yaml:"bearer_token"`
	AccountUsername string `yaml:"account_username"`
	MaxResults      int    `yaml:"max_results"`
	Timeout         string `yaml:"timeout"`
}

type rawAIConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
	Timeout string `yaml:"timeout"`
}

type rawStoreConfig struct {
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	DSN           string `yaml:"dsn"`
	ServiceUserID string `yaml:"service_user_id"`
}

// Load reads and parses the YAML config file at path, expands environment
// variables, applies defaults, validates, and returns the Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables (bearer tokens, API keys, DSNs).
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	discovery, err := durationOr(raw.Polling.DiscoveryInterval, 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("parse polling.discovery_interval %q: %w", raw.Polling.DiscoveryInterval, err)
	}
	enrichment, err := durationOr(raw.Polling.EnrichmentInterval, 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("parse polling.enrichment_interval %q: %w", raw.Polling.EnrichmentInterval, err)
	}
	itemDelay, err := durationOr(raw.Polling.ItemDelay, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parse polling.item_delay %q: %w", raw.Polling.ItemDelay, err)
	}
	searchTimeout, err := durationOr(raw.Search.Timeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parse search.timeout %q: %w", raw.Search.Timeout, err)
	}
	aiTimeout, err := durationOr(raw.AI.Timeout, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("parse ai.timeout %q: %w", raw.AI.Timeout, err)
	}

	batchSize := raw.Polling.EnrichmentBatchSize
	if batchSize == 0 {
		batchSize = 5
	}

	maxResults := raw.Search.MaxResults
	if maxResults == 0 {
		maxResults = 10
	}

	searchBase := raw.Search.BaseURL
	if searchBase == "" {
		searchBase = defaultSearchBaseURL
	}
	aiBase := raw.AI.BaseURL
	if aiBase == "" {
		aiBase = defaultAIBaseURL
	}
	aiModel := raw.AI.Model
	if aiModel == "" {
		aiModel = defaultAIModel
	}

	driver := raw.Store.Driver
	if driver == "" {
		driver = "sqlite"
	}
	storePath := raw.Store.Path
	if storePath == "" {
		storePath = "civicwatch.db"
	}

	metrics := raw.Metrics
	if metrics.ListenAddr == "" {
		metrics.ListenAddr = defaultMetricsAddr
	}

	cfg := &Config{
		Polling: PollingConfig{
			DiscoveryInterval:   discovery,
			EnrichmentInterval:  enrichment,
			ItemDelay:           itemDelay,
			EnrichmentBatchSize: batchSize,
		},
		Search: SearchConfig{
			BaseURL:         searchBase,
			BearerToken:     raw.Search.BearerToken,
			AccountUsername: strings.TrimPrefix(strings.TrimSpace(raw.Search.AccountUsername), "@"),
			MaxResults:      maxResults,
			Timeout:         searchTimeout,
		},
		AI: AIConfig{
			BaseURL: aiBase,
			Model:   aiModel,
			APIKey:  raw.AI.APIKey,
			Timeout: aiTimeout,
		},
		Store: StoreConfig{
			Driver:        driver,
			Path:          storePath,
			DSN:           raw.Store.DSN,
			ServiceUserID: raw.Store.ServiceUserID,
		},
		Alerting: raw.Alerting,
		Metrics:  metrics,
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationOr(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func validate(cfg *Config) error {
	if cfg.Polling.DiscoveryInterval <= 0 {
		return fmt.Errorf("polling.discovery_interval must be positive, got %v", cfg.Polling.DiscoveryInterval)
	}
	if cfg.Polling.EnrichmentInterval <= 0 {
		return fmt.Errorf("polling.enrichment_interval must be positive, got %v", cfg.Polling.EnrichmentInterval)
	}
	if cfg.Polling.ItemDelay < 0 {
		return fmt.Errorf("polling.item_delay must not be negative, got %v", cfg.Polling.ItemDelay)
	}
	if cfg.Polling.EnrichmentBatchSize < 1 {
		return fmt.Errorf("polling.enrichment_batch_size must be at least 1, got %d", cfg.Polling.EnrichmentBatchSize)
	}

	if cfg.Search.BearerToken == "" {
		return fmt.Errorf("search.bearer_token is required")
	}
	if cfg.Search.AccountUsername == "" {
		return fmt.Errorf("search.account_username is required")
	}
	// The recent-search endpoint rejects max_results outside 10..100.
	if cfg.Search.MaxResults < 10 || cfg.Search.MaxResults > 100 {
		return fmt.Errorf("search.max_results must be between 10 and 100, got %d", cfg.Search.MaxResults)
	}

	if cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if cfg.AI.Model == "" {
		return fmt.Errorf("ai.model is required")
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.Path == "" {
			return fmt.Errorf("store.path is required when store.driver is \"sqlite\"")
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required when store.driver is \"postgres\"")
		}
	default:
		return fmt.Errorf("store.driver must be \"sqlite\" or \"postgres\", got %q", cfg.Store.Driver)
	}
	if cfg.Store.ServiceUserID == "" {
		return fmt.Errorf("store.service_user_id is required")
	}

	if cfg.Alerting.Type == "slack" {
		if cfg.Alerting.WebhookURL == "" {
			return fmt.Errorf("alerting.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Alerting.WebhookURL, "https://hooks.slack.com/") {
			return fmt.Errorf("alerting.webhook_url must start with https://hooks.slack.com/")
		}
	}

	return nil
}
