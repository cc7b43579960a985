// Package config loads application configuration from a yaml file and the
// environment and initializes the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Budget      BudgetConfig      `yaml:"budget" mapstructure:"budget"`
	Gates       GatesConfig       `yaml:"gates" mapstructure:"gates"`
	Anchor      AnchorConfig      `yaml:"anchor" mapstructure:"anchor"`
	Policy      PolicyConfig      `yaml:"policy" mapstructure:"policy"`
	Engine      EngineConfig      `yaml:"engine" mapstructure:"engine"`
	Resilience  ResilienceConfig  `yaml:"resilience" mapstructure:"resilience"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds proposer API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds embedding API settings. When the key is empty the
// local hashed embedder is used instead.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	Model  string `yaml:"embed_model" mapstructure:"embed_model"`
}

// BudgetConfig bounds proposer usage.
type BudgetConfig struct {
	MaxCallsPerDocument int     `yaml:"max_calls_per_document" mapstructure:"max_calls_per_document"`
	MaxCallsPerCorpus   int     `yaml:"max_calls_per_corpus" mapstructure:"max_calls_per_corpus"`
	TimeoutSeconds      int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	Retries             int     `yaml:"retries" mapstructure:"retries"`
	RatePerSecond       float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst               int     `yaml:"burst" mapstructure:"burst"`
}

// GatesConfig tunes the deterministic gate chain.
type GatesConfig struct {
	TautologyThreshold  float64 `yaml:"tautology_threshold" mapstructure:"tautology_threshold"`
	MaxFragmentDistance int     `yaml:"max_fragment_distance" mapstructure:"max_fragment_distance"`
	MaxItemGap          int     `yaml:"max_item_gap" mapstructure:"max_item_gap"`
}

// AnchorConfig tunes span resolution.
type AnchorConfig struct {
	ExactThreshold  float64 `yaml:"exact_threshold" mapstructure:"exact_threshold"`
	ApproxThreshold float64 `yaml:"approx_threshold" mapstructure:"approx_threshold"`
}

// PolicyConfig points at an optional promotion-table override file.
type PolicyConfig struct {
	TablePath string `yaml:"table_path" mapstructure:"table_path"`
}

// EngineConfig tunes pass parallelism and the proposer window.
type EngineConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	WindowSize int `yaml:"window_size" mapstructure:"window_size"`
}

// ResilienceConfig tunes the proposer circuit breaker.
type ResilienceConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	CooldownSeconds  int `yaml:"cooldown_seconds" mapstructure:"cooldown_seconds"`
}

// ServerConfig configures the query API.
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
	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ingest.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.embed_model", "text-embedding-3-small")
	v.SetDefault("budget.max_calls_per_document", 32)
	v.SetDefault("budget.max_calls_per_corpus", 512)
	v.SetDefault("budget.timeout_seconds", 30)
	v.SetDefault("budget.retries", 2)
	v.SetDefault("budget.rate_per_second", 2.0)
	v.SetDefault("budget.burst", 4)
	v.SetDefault("gates.tautology_threshold", 0.96)
	v.SetDefault("gates.max_fragment_distance", 600)
	v.SetDefault("gates.max_item_gap", 3)
	v.SetDefault("anchor.exact_threshold", 0.98)
	v.SetDefault("anchor.approx_threshold", 0.85)
	v.SetDefault("engine.workers", 8)
	v.SetDefault("engine.window_size", 8)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.cooldown_seconds", 30)

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

// Validate checks the settings a command mode requires. Collected problems
// are reported together so the operator fixes them in one pass.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "ingest", "consolidate":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if mode == "ingest" && c.Anthropic.APIKey == "" {
			problems = append(problems, "anthropic.api_key is required")
		}
	case "serve", "decisions":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	if c.Budget.MaxCallsPerDocument < 0 || c.Budget.MaxCallsPerCorpus < 0 {
		problems = append(problems, "budget call caps must be >= 0")
	}
	if c.Gates.TautologyThreshold < 0 || c.Gates.TautologyThreshold > 1 {
		problems = append(problems, "gates.tautology_threshold must be in [0, 1]")
	}
	if c.Anchor.ApproxThreshold > c.Anchor.ExactThreshold {
		problems = append(problems, "anchor.approx_threshold must not exceed anchor.exact_threshold")
	}
	if c.Engine.Workers < 1 || c.Engine.Workers > 64 {
		problems = append(problems, "engine.workers must be between 1 and 64")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
