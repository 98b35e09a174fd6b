package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/jooke-shop/sourcing-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Notion     NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Sheet      SheetConfig      `yaml:"sheet" mapstructure:"sheet"`
	Kakao      KakaoConfig      `yaml:"kakao" mapstructure:"kakao"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Inquiry    InquiryConfig    `yaml:"inquiry" mapstructure:"inquiry"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds the market analyzer's Anthropic settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// OpenAIConfig holds the margin analyzer's OpenAI settings.
type OpenAIConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
	MaxDepth int    `yaml:"max_depth" mapstructure:"max_depth"`
}

// JinaConfig holds Jina AI Reader settings (scrape fallback).
type JinaConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	Locale         string `yaml:"locale" mapstructure:"locale"`
	TargetSelector string `yaml:"target_selector" mapstructure:"target_selector"`
	RateLimit      int    `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per minute, 0 = unlimited
}

// NotionConfig holds Notion API credentials for the Notion sheet backend.
type NotionConfig struct {
	Token      string  `yaml:"token" mapstructure:"token"`
	DatabaseID string  `yaml:"database_id" mapstructure:"database_id"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SheetConfig selects and configures the result sink.
type SheetConfig struct {
	Backend   string `yaml:"backend" mapstructure:"backend"` // xlsx or notion
	Path      string `yaml:"path" mapstructure:"path"`
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
}

// KakaoConfig configures the notification gateway. An empty GatewayURL
// puts notify in dry-run mode.
type KakaoConfig struct {
	GatewayURL string `yaml:"gateway_url" mapstructure:"gateway_url"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	SenderKey  string `yaml:"sender_key" mapstructure:"sender_key"`
}

// AnalysisConfig configures both analysis requesters.
type AnalysisConfig struct {
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	ExchangeRate float64 `yaml:"exchange_rate" mapstructure:"exchange_rate"` // KRW per CAD
}

// ValidationConfig holds the cross validator's weights and thresholds.
type ValidationConfig struct {
	MarketWeight         float64 `yaml:"market_weight" mapstructure:"market_weight"`
	MarginWeight         float64 `yaml:"margin_weight" mapstructure:"margin_weight"`
	RecommendScore       float64 `yaml:"recommend_score" mapstructure:"recommend_score"`
	RecommendConsistency float64 `yaml:"recommend_consistency" mapstructure:"recommend_consistency"`
	RejectScore          float64 `yaml:"reject_score" mapstructure:"reject_score"`
}

// ResearchConfig configures the field research log.
type ResearchConfig struct {
	Researcher string `yaml:"researcher" mapstructure:"researcher"`
}

// InquiryConfig points at an optional FAQ table overriding the built-in one.
type InquiryConfig struct {
	CategoriesFile string `yaml:"categories_file" mapstructure:"categories_file"`
}

// PipelineConfig configures orchestration.
type PipelineConfig struct {
	ScrapeAttempts int `yaml:"scrape_attempts" mapstructure:"scrape_attempts"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// StoreConfig configures the history and research database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
	Jina      JinaPricing             `yaml:"jina" mapstructure:"jina"`
	Firecrawl FirecrawlPricing        `yaml:"firecrawl" mapstructure:"firecrawl"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// JinaPricing holds Jina Reader pricing.
type JinaPricing struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// FirecrawlPricing holds Firecrawl pricing.
type FirecrawlPricing struct {
	PlanMonthly     float64 `yaml:"plan_monthly" mapstructure:"plan_monthly"`
	CreditsIncluded float64 `yaml:"credits_included" mapstructure:"credits_included"`
}

// MonitoringConfig configures batch alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// envAliases binds the variable names used by existing .env files.
var envAliases = map[string]string{
	"anthropic.key":      "CLAUDE_API_KEY",
	"openai.key":         "OPENAI_API_KEY",
	"firecrawl.key":      "FIRECRAWL_API_KEY",
	"jina.key":           "JINA_API_KEY",
	"notion.token":       "NOTION_TOKEN",
	"notion.database_id": "NOTION_DATABASE_ID",
	"sheet.path":         "SHEET_PATH",
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOURCING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, alias := range envAliases {
		envKey := "SOURCING_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, alias); err != nil {
			return nil, eris.Wrap(err, "config: bind env")
		}
	}

	// Defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2000)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.max_tokens", 2000)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.max_pages", 5)
	v.SetDefault("firecrawl.max_depth", 2)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.locale", "en-CA")
	v.SetDefault("notion.rate_limit", 3.0)
	v.SetDefault("sheet.backend", "xlsx")
	v.SetDefault("sheet.path", "sourcing.xlsx")
	v.SetDefault("sheet.sheet_name", "analysis")
	v.SetDefault("analysis.timeout_secs", 30)
	v.SetDefault("analysis.exchange_rate", 1350.0)
	v.SetDefault("validation.market_weight", 0.5)
	v.SetDefault("validation.margin_weight", 0.5)
	v.SetDefault("validation.recommend_score", 70.0)
	v.SetDefault("validation.recommend_consistency", 0.6)
	v.SetDefault("validation.reject_score", 40.0)
	v.SetDefault("research.researcher", "현지조사원")
	v.SetDefault("inquiry.categories_file", "")
	v.SetDefault("pipeline.scrape_attempts", 2)
	v.SetDefault("batch.max_concurrent", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sourcing.db")
	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.00, "output": 15.00},
		"claude-haiku-4-5-20251001":  map[string]any{"input": 0.80, "output": 4.00},
	})
	v.SetDefault("pricing.openai", map[string]any{
		"gpt-4o":      map[string]any{"input": 2.50, "output": 10.00},
		"gpt-4o-mini": map[string]any{"input": 0.15, "output": 0.60},
	})
	v.SetDefault("pricing.jina.per_mtok", 0.02)
	v.SetDefault("pricing.firecrawl.plan_monthly", 19.00)
	v.SetDefault("pricing.firecrawl.credits_included", 3000)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 0)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings a command needs are present. Missing
// keys are reported together in a single resilience.ConfigError.
func (c *Config) Validate(mode string) error {
	var missing, problems []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	switch mode {
	case "analyze":
		require("anthropic.key", c.Anthropic.Key)
		require("openai.key", c.OpenAI.Key)
		if c.Firecrawl.Key == "" && c.Jina.Key == "" {
			missing = append(missing, "firecrawl.key")
		}
		missing, problems = c.validateSheet(missing, problems)
		missing = c.validateStore(missing)
	case "crawl":
		require("firecrawl.key", c.Firecrawl.Key)
	case "sheet":
		missing, problems = c.validateSheet(missing, problems)
	case "store":
		missing = c.validateStore(missing)
	case "notify":
		if c.Kakao.GatewayURL != "" {
			require("kakao.api_key", c.Kakao.APIKey)
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		missing = c.validateStore(missing)
	default:
		return resilience.NewConfigError(fmt.Sprintf("unknown mode %q", mode))
	}

	if c.Analysis.TimeoutSecs <= 0 {
		problems = append(problems, "analysis.timeout_secs must be > 0")
	}
	if c.Analysis.ExchangeRate <= 0 {
		problems = append(problems, "analysis.exchange_rate must be > 0")
	}
	if c.Validation.MarketWeight < 0 || c.Validation.MarginWeight < 0 {
		problems = append(problems, "validation weights must be >= 0")
	}
	if c.Validation.RecommendConsistency < 0 || c.Validation.RecommendConsistency > 1 {
		problems = append(problems, "validation.recommend_consistency must be between 0 and 1")
	}
	if c.Validation.RejectScore > c.Validation.RecommendScore {
		problems = append(problems, "validation.reject_score must not exceed validation.recommend_score")
	}
	if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 20 {
		problems = append(problems, "batch.max_concurrent must be between 1 and 20")
	}

	if len(missing) == 0 && len(problems) == 0 {
		return nil
	}
	return resilience.NewConfigError(strings.Join(problems, "; "), missing...)
}

func (c *Config) validateSheet(missing, problems []string) ([]string, []string) {
	switch c.Sheet.Backend {
	case "xlsx":
		if c.Sheet.Path == "" {
			missing = append(missing, "sheet.path")
		}
	case "notion":
		if c.Notion.Token == "" {
			missing = append(missing, "notion.token")
		}
		if c.Notion.DatabaseID == "" {
			missing = append(missing, "notion.database_id")
		}
	default:
		problems = append(problems, fmt.Sprintf("sheet.backend %q must be xlsx or notion", c.Sheet.Backend))
	}
	return missing, problems
}

func (c *Config) validateStore(missing []string) []string {
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}
	return missing
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
