package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Naming    NamingConfig    `yaml:"naming" mapstructure:"naming"`
	Describe  DescribeConfig  `yaml:"describe" mapstructure:"describe"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LanguageCode     string  `yaml:"language_code" mapstructure:"language_code"`
	RegionCode       string  `yaml:"region_code" mapstructure:"region_code"`
	LocationCacheMin int     `yaml:"location_cache_minutes" mapstructure:"location_cache_minutes"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// SearchConfig controls the radius-expanding search loop.
type SearchConfig struct {
	RadiusFloorM       float64 `yaml:"radius_floor_m" mapstructure:"radius_floor_m"`
	RadiusStepM        float64 `yaml:"radius_step_m" mapstructure:"radius_step_m"`
	RadiusCeilingM     float64 `yaml:"radius_ceiling_m" mapstructure:"radius_ceiling_m"`
	OverfetchFactor    int     `yaml:"overfetch_factor" mapstructure:"overfetch_factor"`
	MaxResultsPerQuery int     `yaml:"max_results_per_query" mapstructure:"max_results_per_query"`
	MaxResults         int     `yaml:"max_results" mapstructure:"max_results"`
	GenericTerm        string  `yaml:"generic_term" mapstructure:"generic_term"`
	RecoverNames       bool    `yaml:"recover_names" mapstructure:"recover_names"`
}

// RetryConfig is the retry policy applied to transient provider failures.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// NamingConfig configures website-based name recovery.
type NamingConfig struct {
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// DescribeConfig configures AI description generation.
type DescribeConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Concurrency int     `yaml:"concurrency" mapstructure:"concurrency"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	JobTTLMinutes  int      `yaml:"job_ttl_minutes" mapstructure:"job_ttl_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARTNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("google.key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.rate_limit", 5)
	v.SetDefault("google.timeout_secs", 10)
	v.SetDefault("google.language_code", "fr")
	v.SetDefault("google.region_code", "FR")
	v.SetDefault("google.location_cache_minutes", 0)
	v.SetDefault("google.breaker_threshold", 5)
	v.SetDefault("google.breaker_reset_secs", 30)
	v.SetDefault("search.radius_floor_m", 5000)
	v.SetDefault("search.radius_step_m", 5000)
	v.SetDefault("search.radius_ceiling_m", 50000)
	v.SetDefault("search.overfetch_factor", 3)
	v.SetDefault("search.max_results_per_query", 20)
	v.SetDefault("search.max_results", 10)
	v.SetDefault("search.generic_term", "entreprise")
	v.SetDefault("search.recover_names", false)
	v.SetDefault("retry.max_attempts", 2)
	v.SetDefault("retry.initial_backoff_ms", 300)
	v.SetDefault("retry.max_backoff_ms", 5000)
	v.SetDefault("naming.timeout_secs", 4)
	v.SetDefault("naming.user_agent", "Mozilla/5.0 (compatible; PartnerFinder/1.0)")
	v.SetDefault("naming.cache_ttl_minutes", 120)
	v.SetDefault("describe.provider", "openai")
	v.SetDefault("describe.concurrency", 3)
	v.SetDefault("describe.max_tokens", 800)
	v.SetDefault("describe.temperature", 0.7)
	v.SetDefault("describe.timeout_secs", 45)
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.job_ttl_minutes", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the settings a command needs are present. scope is
// "search", "describe" or "serve".
func (c *Config) Validate(scope string) error {
	switch scope {
	case "search":
		return c.validateSearch()
	case "describe":
		return c.validateDescribe()
	case "serve":
		if err := c.validateSearch(); err != nil {
			return err
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return eris.Errorf("config: invalid server.port %d", c.Server.Port)
		}
		return nil
	default:
		return eris.Errorf("config: unknown validation scope %q", scope)
	}
}

func (c *Config) validateSearch() error {
	if c.Google.Key == "" {
		return eris.New("config: google.key is required (PARTNER_GOOGLE_KEY)")
	}
	s := c.Search
	if s.RadiusFloorM <= 0 || s.RadiusStepM <= 0 {
		return eris.New("config: search radius floor and step must be positive")
	}
	if s.RadiusCeilingM < s.RadiusFloorM {
		return eris.Errorf("config: search.radius_ceiling_m %.0f is below the floor %.0f", s.RadiusCeilingM, s.RadiusFloorM)
	}
	return nil
}

func (c *Config) validateDescribe() error {
	switch c.Describe.Provider {
	case "openai":
		if c.OpenAI.Key == "" {
			return eris.New("config: openai.key is required (PARTNER_OPENAI_KEY)")
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required (PARTNER_ANTHROPIC_KEY)")
		}
	default:
		return eris.Errorf("config: unknown describe.provider %q", c.Describe.Provider)
	}
	return nil
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
