// Package app wires the service dependencies shared by the HTTP server
// and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	infraconfig "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/config"
	infrahttp "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/http"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/metrics"
	infraredis "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/redis"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/api"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/config"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/database"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/drafts"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/github"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/handler"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/llm"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/publisher"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/research"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/scraper"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/votes"
)

const metricsNamespace = "tool_reviews"

// App holds the wired service components.
type App struct {
	Config    *config.Config
	Logger    logger.Logger
	DB        *sqlx.DB
	Redis     *redis.Client
	Metrics   *metrics.Metrics
	Drafts    *drafts.Store
	Research  *research.Orchestrator
	Worker    *research.Worker
	Publisher *publisher.Publisher
	Ledger    *votes.Ledger
}

// LoadConfig loads and validates configuration from path, or from
// CONFIG_PATH / config.yml when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = infraconfig.GetConfigPath("config.yml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// NewLogger creates the service logger.
func NewLogger(cfg *config.Config) (logger.Logger, error) {
	logCfg := cfg.Logging
	logCfg.Development = logCfg.Development || cfg.Service.Debug
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		logger.String("service", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
	), nil
}

// New connects to the backends and wires every component. Redis is
// optional; without it vote counts are read from Postgres.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	db, err := database.NewPostgresConnection(ctx, database.Config{
		DSN:          cfg.Database.DSN(),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	a := &App{
		Config:  cfg,
		Logger:  log,
		DB:      db,
		Metrics: metrics.New(metricsNamespace),
		Drafts:  drafts.NewStore(db),
	}

	var cache votes.CountCache
	if cfg.Redis.Enabled() {
		a.Redis, err = infraredis.NewClient(ctx, cfg.Redis.Config)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		cache = votes.NewRedisCache(a.Redis, cfg.Redis.CacheTTL)
		log.Info("Vote count cache enabled", logger.String("address", cfg.Redis.Address))
	}
	a.Ledger = votes.NewLedger(votes.NewPostgresRepository(db), cache, log, a.Metrics)

	fast, quality := newModels(&cfg.LLM, log)
	site := scraper.New(
		infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Service.ScrapeTimeout}),
		log,
		scraper.LogoEndpoints{},
	)
	a.Research = research.NewOrchestrator(a.Drafts, site, fast, quality, research.Config{
		Style:            cfg.Style,
		FastMaxTokens:    cfg.LLM.FastMaxTokens,
		QualityMaxTokens: cfg.LLM.QualityMaxTokens,
	}, log, a.Metrics)
	a.Worker = research.NewWorker(a.Drafts, a.Research, research.WorkerConfig{
		PollInterval: cfg.Service.ResearchPollInterval,
		BatchSize:    cfg.Service.ResearchBatchSize,
	}, log)

	repo := github.NewClient(github.Config{
		Token:     cfg.GitHub.Token,
		Repo:      cfg.GitHub.Repo,
		Branch:    cfg.GitHub.Branch,
		BaseURL:   cfg.GitHub.APIBaseURL,
		UserAgent: cfg.Service.Name + "/" + cfg.Service.Version,
		Retry: github.RetryPolicy{
			Status:      cfg.LLM.Retry.Status,
			MaxAttempts: cfg.LLM.Retry.MaxAttempts,
			Delay:       cfg.LLM.Retry.Delay,
		},
	}, infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.GitHub.Timeout}), log)
	a.Publisher = publisher.New(a.Drafts, repo, cfg.GitHub.ContentDir, log, a.Metrics)

	return a, nil
}

// newModels builds the fast and quality tiers, each behind the transient
// status retry policy.
func newModels(cfg *config.LLMConfig, log logger.Logger) (fast, quality llm.Model) {
	client := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: cfg.Timeout})
	policy := llm.RetryPolicy{
		Status:      cfg.Retry.Status,
		MaxAttempts: cfg.Retry.MaxAttempts,
		Delay:       cfg.Retry.Delay,
	}

	switch cfg.FastProvider {
	case config.ProviderPerplexity:
		fast = llm.NewChat(llm.ChatConfig{
			Provider:  cfg.FastProvider,
			APIKey:    cfg.ChatAPIKey,
			BaseURL:   cfg.ChatBaseURL,
			Model:     cfg.ChatModel,
			MaxTokens: cfg.FastMaxTokens,
		}, client)
	default:
		fast = llm.NewAnthropic(llm.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.FastModel,
			BaseURL:   cfg.AnthropicBaseURL,
			MaxTokens: cfg.FastMaxTokens,
		}, client)
	}

	quality = llm.NewAnthropic(llm.AnthropicConfig{
		APIKey:    cfg.AnthropicAPIKey,
		Model:     cfg.QualityModel,
		BaseURL:   cfg.AnthropicBaseURL,
		MaxTokens: cfg.QualityMaxTokens,
	}, client)

	return llm.NewRetrying(fast, "fast", policy, log), llm.NewRetrying(quality, "quality", policy, log)
}

// Handlers builds the HTTP handlers.
func (a *App) Handlers() api.Handlers {
	return api.Handlers{
		Votes:   handler.NewVoteHandler(a.Ledger, a.Logger, a.Metrics),
		Drafts:  handler.NewDraftHandler(a.Drafts, a.Research, a.Logger),
		Publish: handler.NewPublishHandler(a.Publisher, a.Logger),
		Auth:    handler.NewAuthHandler(a.Config.Auth.AdminPassword, a.Config.Auth.JWTSecret, a.Config.Auth.TokenTTL, a.Logger),
	}
}

// RedisPing returns the cache health check, or nil when Redis is disabled.
func (a *App) RedisPing() func(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
}

// Close releases the backend connections.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	_ = a.DB.Close()
}
