// Package config loads application configuration from file and
// environment and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Gemini       GeminiConfig       `yaml:"gemini" mapstructure:"gemini"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity   PerplexityConfig   `yaml:"perplexity" mapstructure:"perplexity"`
	Places       PlacesConfig       `yaml:"places" mapstructure:"places"`
	Jina         JinaConfig         `yaml:"jina" mapstructure:"jina"`
	Chain        ChainConfig        `yaml:"chain" mapstructure:"chain"`
	Discovery    DiscoveryConfig    `yaml:"discovery" mapstructure:"discovery"`
	Research     ResearchConfig     `yaml:"research" mapstructure:"research"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Dispatch     DispatchConfig     `yaml:"dispatch" mapstructure:"dispatch"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// GeminiConfig holds Google Gemini API settings (fast/cheap tier).
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings (quality tier).
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// PerplexityConfig holds Perplexity API settings (third vendor and
// market-research generator).
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PlacesConfig holds Google Places API settings for business discovery.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// JinaConfig holds Jina AI search settings for web references and
// decision-maker lookups.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
}

// ChainConfig configures the provider fallback chain.
type ChainConfig struct {
	FastTimeoutSecs    int  `yaml:"fast_timeout_secs" mapstructure:"fast_timeout_secs"`
	QualityTimeoutSecs int  `yaml:"quality_timeout_secs" mapstructure:"quality_timeout_secs"`
	AltTimeoutSecs     int  `yaml:"alt_timeout_secs" mapstructure:"alt_timeout_secs"`
	RateLimitRetries   int  `yaml:"rate_limit_retries" mapstructure:"rate_limit_retries"`
	MaxConcurrentCalls int  `yaml:"max_concurrent_calls" mapstructure:"max_concurrent_calls"`
	CacheEnabled       bool `yaml:"cache_enabled" mapstructure:"cache_enabled"`
	CacheTTLMins       int  `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	MaxTokens          int  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// FastTimeout returns the provider-A attempt timeout.
func (c ChainConfig) FastTimeout() time.Duration {
	return time.Duration(c.FastTimeoutSecs) * time.Second
}

// QualityTimeout returns the provider-B attempt timeout.
func (c ChainConfig) QualityTimeout() time.Duration {
	return time.Duration(c.QualityTimeoutSecs) * time.Second
}

// AltTimeout returns the provider-C attempt timeout.
func (c ChainConfig) AltTimeout() time.Duration {
	return time.Duration(c.AltTimeoutSecs) * time.Second
}

// CacheTTL returns the generation cache entry lifetime.
func (c ChainConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMins) * time.Minute
}

// DiscoveryConfig configures the business discovery task.
type DiscoveryConfig struct {
	ResultsPerQuery   int `yaml:"results_per_query" mapstructure:"results_per_query"`
	MaxIndustries     int `yaml:"max_industries" mapstructure:"max_industries"`
	DMLookupLimit     int `yaml:"dm_lookup_limit" mapstructure:"dm_lookup_limit"`
	LookupTimeoutSecs int `yaml:"lookup_timeout_secs" mapstructure:"lookup_timeout_secs"`
}

// LookupTimeout returns the per-lookup deadline.
func (c DiscoveryConfig) LookupTimeout() time.Duration {
	return time.Duration(c.LookupTimeoutSecs) * time.Second
}

// ResearchConfig configures the market research task.
type ResearchConfig struct {
	MaxReferences int `yaml:"max_references" mapstructure:"max_references"`
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the research generation deadline.
func (c ResearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// OrchestratorConfig configures the orchestration run.
type OrchestratorConfig struct {
	TaskTimeoutSecs int `yaml:"task_timeout_secs" mapstructure:"task_timeout_secs"`
}

// TaskTimeout returns the per-task watchdog deadline.
func (c OrchestratorConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSecs) * time.Second
}

// DispatchConfig configures the downstream job dispatcher.
type DispatchConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the dispatch request deadline.
func (c DispatchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
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

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "leadgen.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("chain.fast_timeout_secs", 8)
	v.SetDefault("chain.quality_timeout_secs", 30)
	v.SetDefault("chain.alt_timeout_secs", 20)
	v.SetDefault("chain.rate_limit_retries", 3)
	v.SetDefault("chain.max_concurrent_calls", 5)
	v.SetDefault("chain.cache_enabled", true)
	v.SetDefault("chain.cache_ttl_mins", 60)
	v.SetDefault("chain.max_tokens", 4096)
	v.SetDefault("discovery.results_per_query", 10)
	v.SetDefault("discovery.max_industries", 2)
	v.SetDefault("discovery.dm_lookup_limit", 5)
	v.SetDefault("discovery.lookup_timeout_secs", 15)
	v.SetDefault("research.max_references", 5)
	v.SetDefault("research.timeout_secs", 45)
	v.SetDefault("orchestrator.task_timeout_secs", 180)
	v.SetDefault("dispatch.timeout_secs", 10)

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
