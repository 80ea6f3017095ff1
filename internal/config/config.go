// Package config loads service configuration from an optional YAML file and
// TUTOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/learnsmart/tutor/internal/cache"
	"github.com/learnsmart/tutor/internal/engine"
	"github.com/learnsmart/tutor/internal/generator"
	"github.com/learnsmart/tutor/internal/llm"
	"github.com/learnsmart/tutor/internal/logger"
	"github.com/learnsmart/tutor/internal/model"
	"github.com/learnsmart/tutor/internal/tracing"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TUTOR"

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Log       logger.Config     `mapstructure:"log"`
	Store     StoreConfig       `mapstructure:"store"`
	LLM       llm.Config        `mapstructure:"llm"`
	Generator GeneratorConfig   `mapstructure:"generator"`
	Engine    engine.Config     `mapstructure:"engine"`
	Cache     cache.Config      `mapstructure:"cache"`
	Redis     cache.RedisConfig `mapstructure:"redis"`
	Tracing   tracing.Config    `mapstructure:"tracing"`
	RateLimit RateLimitConfig   `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig locates the sqlite audit database. An empty Path uses
// store.DefaultDBPath.
type StoreConfig struct {
	Path  string `mapstructure:"path"`
	Audit bool   `mapstructure:"audit"`
}

// GeneratorConfig enables the generative strategy. When Enabled is false
// the engine runs without a content generator.
type GeneratorConfig struct {
	Enabled bool `mapstructure:"enabled"`

	generator.GuardConfig `mapstructure:",squash"`
	generator.LLMConfig   `mapstructure:",squash"`
}

// RateLimitConfig bounds HTTP requests per client IP. RequestsPerSecond
// <= 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Log:   logger.DefaultConfig(),
		Store: StoreConfig{Audit: true},
		LLM:   llm.DefaultConfig(),
		Generator: GeneratorConfig{
			GuardConfig: generator.DefaultGuardConfig(),
			LLMConfig:   generator.DefaultLLMConfig(),
		},
		Engine:    engine.DefaultConfig(),
		Cache:     cache.DefaultConfig(),
		Redis:     cache.DefaultRedisConfig(),
		Tracing:   tracing.DefaultConfig(),
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("log.compress", d.Log.Compress)

	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.audit", d.Store.Audit)

	// llm.provider has no default so an unset provider can be discovered
	// from vendor API key variables.
	v.SetDefault("llm.anthropic.model", d.LLM.Anthropic.Model)
	v.SetDefault("llm.openai.model", d.LLM.OpenAI.Model)
	v.SetDefault("llm.gemini.model", d.LLM.Gemini.Model)
	v.SetDefault("llm.openrouter.model", d.LLM.OpenRouter.Model)
	v.SetDefault("llm.retry.max_attempts", d.LLM.Retry.MaxAttempts)
	v.SetDefault("llm.retry.initial_wait", d.LLM.Retry.InitialWait)
	v.SetDefault("llm.retry.max_wait", d.LLM.Retry.MaxWait)
	v.SetDefault("llm.retry.multiplier", d.LLM.Retry.Multiplier)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("generator.enabled", d.Generator.Enabled)
	v.SetDefault("generator.timeout", d.Generator.Timeout)
	v.SetDefault("generator.rate_per_second", d.Generator.RatePerSecond)
	v.SetDefault("generator.burst", d.Generator.Burst)
	v.SetDefault("generator.breaker_failures", d.Generator.BreakerFailures)
	v.SetDefault("generator.breaker_open_for", d.Generator.BreakerOpenFor)
	v.SetDefault("generator.max_tokens", d.Generator.MaxTokens)
	v.SetDefault("generator.temperature", d.Generator.Temperature)

	v.SetDefault("engine.default_strategy", string(d.Engine.DefaultStrategy))
	v.SetDefault("engine.call_timeout", d.Engine.CallTimeout)
	v.SetDefault("engine.lesson_locale", d.Engine.LessonLocale)
	v.SetDefault("engine.mastery.base_rate", d.Engine.Mastery.BaseRate)
	v.SetDefault("engine.mastery.initial_mastery", d.Engine.Mastery.InitialMastery)
	v.SetDefault("engine.mastery.trend_window", d.Engine.Mastery.TrendWindow)
	v.SetDefault("engine.mastery.trend_threshold", d.Engine.Mastery.TrendThreshold)
	v.SetDefault("engine.mastery.proficient_threshold", d.Engine.Mastery.ProficientThreshold)
	v.SetDefault("engine.mastery.mastered_threshold", d.Engine.Mastery.MasteredThreshold)
	v.SetDefault("engine.item_select.recent_window", d.Engine.ItemSelect.RecentWindow)
	v.SetDefault("engine.item_select.default_mastery", d.Engine.ItemSelect.DefaultMastery)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.size", d.Cache.Size)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.prefix", d.Cache.Prefix)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.pool_size", d.Redis.PoolSize)
	v.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_ratio", d.Tracing.SampleRatio)

	v.SetDefault("rate_limit.requests_per_second", d.RateLimit.RequestsPerSecond)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
}

// bindEnv maps the provider settings to the variable names llm.ConfigFromEnv
// reads, plus the vendors' own key variables.
func bindEnv(v *viper.Viper) {
	bind := func(key string, envs ...string) {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	bind("llm.provider", "TUTOR_LLM_PROVIDER")
	bind("llm.anthropic.api_key", "TUTOR_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	bind("llm.anthropic.model", "TUTOR_ANTHROPIC_MODEL")
	bind("llm.anthropic.base_url", "TUTOR_ANTHROPIC_BASE_URL")
	bind("llm.openai.api_key", "TUTOR_OPENAI_API_KEY", "OPENAI_API_KEY")
	bind("llm.openai.model", "TUTOR_OPENAI_MODEL")
	bind("llm.openai.base_url", "TUTOR_OPENAI_BASE_URL")
	bind("llm.gemini.api_key", "TUTOR_GEMINI_API_KEY", "GEMINI_API_KEY")
	bind("llm.gemini.model", "TUTOR_GEMINI_MODEL")
	bind("llm.openrouter.api_key", "TUTOR_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	bind("llm.openrouter.model", "TUTOR_OPENROUTER_MODEL")
	bind("llm.openrouter.base_url", "TUTOR_OPENROUTER_BASE_URL")
}

// Load reads path when it is non-empty, otherwise looks for tutor.yaml in
// the working directory and $HOME/.config/tutor. A missing default file is
// not an error. Environment variables override file values: the key
// generator.timeout is TUTOR_GENERATOR_TIMEOUT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("tutor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/tutor")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if !v.IsSet("llm.provider") {
		if found, ok := llm.DiscoverConfig(); ok {
			cfg.LLM.Provider = found.Provider
		} else {
			cfg.LLM.Provider = llm.DefaultConfig().Provider
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values the decoders cannot.
func (c *Config) Validate() error {
	if _, err := model.ParseStrategy(string(c.Engine.DefaultStrategy), model.StrategyHeuristic); err != nil {
		return fmt.Errorf("engine.default_strategy: %w", err)
	}
	switch c.Cache.Backend {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend)
	}
	if c.Engine.Mastery.BaseRate <= 0 || c.Engine.Mastery.BaseRate > 1 {
		return fmt.Errorf("engine.mastery.base_rate must be in (0,1], got %v", c.Engine.Mastery.BaseRate)
	}
	if c.Generator.Enabled {
		if err := c.LLM.Validate(); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	}
	return nil
}
