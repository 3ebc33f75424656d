// Package config holds the review service configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	infraconfig "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/config"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	infraredis "github.com/gt-quantum/fyi-gtm-sub001/infrastructure/redis"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/prompts"
)

// Default configuration values.
const (
	defaultServiceName    = "tool-reviews"
	defaultServicePort    = 8095
	defaultVersion        = "0.1.0"
	defaultPollInterval   = 30 * time.Second
	defaultResearchBatch  = 10
	defaultScrapeTimeout  = 15 * time.Second
	defaultDBHost         = "localhost"
	defaultDBPort         = 5432
	defaultDBName         = "tool_reviews"
	defaultDBUser         = "postgres"
	defaultDBSSLMode      = "disable"
	defaultDBMaxOpenConns = 10
	defaultDBMaxIdleConns = 5
	defaultCacheTTL       = 10 * time.Minute
	defaultTokenTTL       = 24 * time.Hour
	defaultGitHubAPI      = "https://api.github.com"
	defaultGitHubBranch   = "main"
	defaultContentDir     = "src/content/tools"
	defaultFastProvider   = ProviderAnthropic
	defaultFastModel      = "claude-haiku-4-5"
	defaultQualityModel   = "claude-sonnet-4-5"
	defaultChatModel      = "sonar"
	defaultChatBaseURL    = "https://api.perplexity.ai"
	defaultFastTokens     = 2048
	defaultQualityTokens  = 8192
	defaultLLMTimeout     = 120 * time.Second
	defaultRetryStatus    = 422
	defaultRetryAttempts  = 3
	defaultRetryDelay     = 2 * time.Second
	defaultLoggingLevel   = "info"
	defaultLoggingFmt     = "json"

	defaultMaxVotesPerMinute = 10
	defaultWindowSeconds     = 60
)

// Fast-tier providers.
const (
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
)

var repoPattern = regexp.MustCompile(`^[\w.-]+/[\w.-]+$`)

// Config holds the application configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	GitHub    GitHubConfig    `yaml:"github"`
	LLM       LLMConfig       `yaml:"llm"`
	Style     prompts.Style   `yaml:"style"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   logger.Config   `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name                 string        `yaml:"name"`
	Version              string        `yaml:"version"`
	Port                 int           `env:"TOOL_REVIEWS_PORT"     yaml:"port"`
	Debug                bool          `env:"APP_DEBUG"             yaml:"debug"`
	CORSOrigins          []string      `yaml:"cors_origins"`
	TrustedProxies       []string      `yaml:"trusted_proxies"`
	ResearchPollInterval time.Duration `env:"RESEARCH_POLL_INTERVAL" yaml:"research_poll_interval"`
	ResearchBatchSize    int           `yaml:"research_batch_size"`
	ScrapeTimeout        time.Duration `yaml:"scrape_timeout"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host         string `env:"POSTGRES_TOOL_REVIEWS_HOST"     yaml:"host"`
	Port         int    `env:"POSTGRES_TOOL_REVIEWS_PORT"     yaml:"port"`
	User         string `env:"POSTGRES_TOOL_REVIEWS_USER"     yaml:"user"`
	Password     string `env:"POSTGRES_TOOL_REVIEWS_PASSWORD" yaml:"password"`
	Database     string `env:"POSTGRES_TOOL_REVIEWS_DB"       yaml:"database"`
	SSLMode      string `env:"POSTGRES_TOOL_REVIEWS_SSLMODE"  yaml:"sslmode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// URL returns the connection string in the URL form golang-migrate expects.
func (d *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

// RedisConfig holds the vote count cache configuration. An empty address
// disables the cache.
type RedisConfig struct {
	infraredis.Config `yaml:",inline"`

	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Enabled reports whether a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Address != ""
}

// AuthConfig holds the admin login configuration.
type AuthConfig struct {
	JWTSecret     string        `env:"AUTH_JWT_SECRET"     yaml:"jwt_secret"`
	AdminPassword string        `env:"AUTH_ADMIN_PASSWORD" yaml:"admin_password"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// GitHubConfig holds the content repository configuration.
type GitHubConfig struct {
	Token      string        `env:"GITHUB_TOKEN"        yaml:"token"`
	Repo       string        `env:"GITHUB_REPO"         yaml:"repo"`
	Branch     string        `env:"GITHUB_BRANCH"       yaml:"branch"`
	APIBaseURL string        `env:"GITHUB_API_BASE_URL" yaml:"api_base_url"`
	ContentDir string        `yaml:"content_dir"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LLMConfig holds the fast and quality model tiers.
type LLMConfig struct {
	FastProvider     string        `env:"LLM_FAST_PROVIDER"   yaml:"fast_provider"`
	FastModel        string        `env:"LLM_FAST_MODEL"      yaml:"fast_model"`
	QualityModel     string        `env:"LLM_QUALITY_MODEL"   yaml:"quality_model"`
	AnthropicAPIKey  string        `env:"ANTHROPIC_API_KEY"   yaml:"anthropic_api_key"`
	AnthropicBaseURL string        `env:"ANTHROPIC_BASE_URL"  yaml:"anthropic_base_url"`
	ChatAPIKey       string        `env:"PERPLEXITY_API_KEY"  yaml:"chat_api_key"`
	ChatBaseURL      string        `env:"PERPLEXITY_BASE_URL" yaml:"chat_base_url"`
	ChatModel        string        `yaml:"chat_model"`
	FastMaxTokens    int           `yaml:"fast_max_tokens"`
	QualityMaxTokens int           `yaml:"quality_max_tokens"`
	Timeout          time.Duration `yaml:"timeout"`
	Retry            RetryConfig   `yaml:"retry"`
}

// RetryConfig is the transient-status retry policy shared by model calls
// and content repository reads.
type RetryConfig struct {
	Status      int           `env:"RETRY_TRANSIENT_STATUS" yaml:"status"`
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// RateLimitConfig holds vote rate limiting configuration.
type RateLimitConfig struct {
	MaxVotesPerMinute int `yaml:"max_votes_per_minute"`
	WindowSeconds     int `yaml:"window_seconds"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return infraconfig.LoadWithDefaults[Config](path, setDefaults)
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setAuthDefaults(&cfg.Auth)
	setGitHubDefaults(&cfg.GitHub)
	setLLMDefaults(&cfg.LLM)
	cfg.Style = cfg.Style.WithDefaults()
	setRateLimitDefaults(&cfg.RateLimit)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
	if svc.ResearchPollInterval == 0 {
		svc.ResearchPollInterval = defaultPollInterval
	}
	if svc.ResearchBatchSize == 0 {
		svc.ResearchBatchSize = defaultResearchBatch
	}
	if svc.ScrapeTimeout == 0 {
		svc.ScrapeTimeout = defaultScrapeTimeout
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
	if db.MaxOpenConns == 0 {
		db.MaxOpenConns = defaultDBMaxOpenConns
	}
	if db.MaxIdleConns == 0 {
		db.MaxIdleConns = defaultDBMaxIdleConns
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.CacheTTL == 0 {
		r.CacheTTL = defaultCacheTTL
	}
}

func setAuthDefaults(a *AuthConfig) {
	if a.TokenTTL == 0 {
		a.TokenTTL = defaultTokenTTL
	}
}

func setGitHubDefaults(g *GitHubConfig) {
	if g.APIBaseURL == "" {
		g.APIBaseURL = defaultGitHubAPI
	}
	if g.Branch == "" {
		g.Branch = defaultGitHubBranch
	}
	if g.ContentDir == "" {
		g.ContentDir = defaultContentDir
	}
	if g.Timeout == 0 {
		g.Timeout = 30 * time.Second
	}
}

func setLLMDefaults(l *LLMConfig) {
	if l.FastProvider == "" {
		l.FastProvider = defaultFastProvider
	}
	if l.FastModel == "" {
		if l.FastProvider == ProviderPerplexity {
			l.FastModel = defaultChatModel
		} else {
			l.FastModel = defaultFastModel
		}
	}
	if l.QualityModel == "" {
		l.QualityModel = defaultQualityModel
	}
	if l.ChatBaseURL == "" {
		l.ChatBaseURL = defaultChatBaseURL
	}
	if l.ChatModel == "" {
		l.ChatModel = defaultChatModel
	}
	if l.FastMaxTokens == 0 {
		l.FastMaxTokens = defaultFastTokens
	}
	if l.QualityMaxTokens == 0 {
		l.QualityMaxTokens = defaultQualityTokens
	}
	if l.Timeout == 0 {
		l.Timeout = defaultLLMTimeout
	}
	if l.Retry.Status == 0 {
		l.Retry.Status = defaultRetryStatus
	}
	if l.Retry.MaxAttempts == 0 {
		l.Retry.MaxAttempts = defaultRetryAttempts
	}
	if l.Retry.Delay == 0 {
		l.Retry.Delay = defaultRetryDelay
	}
}

func setRateLimitDefaults(rl *RateLimitConfig) {
	if rl.MaxVotesPerMinute == 0 {
		rl.MaxVotesPerMinute = defaultMaxVotesPerMinute
	}
	if rl.WindowSeconds == 0 {
		rl.WindowSeconds = defaultWindowSeconds
	}
}

func setLoggingDefaults(log *logger.Config) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
	if log.Format == "" {
		log.Format = defaultLoggingFmt
	}
}

// Validate validates the configuration the HTTP server and the research
// worker need.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("auth.jwt_secret", c.Auth.JWTSecret); err != nil {
		return err
	}
	if err := infraconfig.ValidateRequired("auth.admin_password", c.Auth.AdminPassword); err != nil {
		return err
	}
	if err := validation.Validate(c.Service.TrustedProxies, validation.Each(validation.By(ipOrCIDR))); err != nil {
		return fmt.Errorf("service.trusted_proxies: %w", err)
	}
	if err := c.GitHub.Validate(); err != nil {
		return fmt.Errorf("github: %w", err)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return nil
}

func ipOrCIDR(value any) error {
	s, _ := value.(string)
	if net.ParseIP(s) != nil {
		return nil
	}
	if _, _, err := net.ParseCIDR(s); err != nil {
		return errors.New("must be an IP or CIDR")
	}
	return nil
}

// Validate validates the content repository configuration.
func (g *GitHubConfig) Validate() error {
	return validation.ValidateStruct(g,
		validation.Field(&g.Token, validation.Required),
		validation.Field(&g.Repo, validation.Required, validation.Match(repoPattern).Error("must be owner/name")),
		validation.Field(&g.Branch, validation.Required),
		validation.Field(&g.ContentDir, validation.Required),
	)
}

// Validate validates the model tiers.
func (l *LLMConfig) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.FastProvider, validation.Required, validation.In(ProviderAnthropic, ProviderPerplexity)),
		validation.Field(&l.AnthropicAPIKey, validation.Required),
		validation.Field(&l.ChatAPIKey, validation.When(l.FastProvider == ProviderPerplexity, validation.Required)),
		validation.Field(&l.Retry),
	)
}

// Validate validates the retry policy.
func (r RetryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Status, validation.Min(400), validation.Max(599)),
		validation.Field(&r.MaxAttempts, validation.Min(1)),
	)
}
