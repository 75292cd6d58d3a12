// Package config loads the beehive application configuration and the static
// agent fixtures.
//
// Precedence (highest to lowest):
//  1. Environment variables (BEEHIVE_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)
//  2. The config file (explicit path, ./beehive.yaml or ~/.config/beehive/config.yaml)
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/internal/tracer"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/model"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BEEHIVE"

// Config holds all configuration of a beehive process.
type Config struct {
	Platform PlatformConfig `mapstructure:"platform"`
	Server   ServerConfig   `mapstructure:"server"`
	Engine   EngineConfig   `mapstructure:"engine"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  tracer.Config  `mapstructure:"tracing"`
	// Fixtures is the path of a yaml file with static agent configs.
	Fixtures string `mapstructure:"fixtures"`
}

// PlatformConfig holds the remote platform connection settings.
type PlatformConfig struct {
	URL        string        `mapstructure:"url"`
	ClientName string        `mapstructure:"client_name"`
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

// ServerConfig holds the inbound MCP server settings.
type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`
}

// EngineConfig holds supervisor settings.
type EngineConfig struct {
	SupervisorID     string               `mapstructure:"supervisor_id"`
	OperatorPoolSize int                  `mapstructure:"operator_pool_size"`
	Policy           core.ExecutionPolicy `mapstructure:"policy"`
}

// LLMConfig binds language models to roles.
type LLMConfig struct {
	// Roles maps a role ("supervisor", "default") to its model.
	Roles     map[string]RoleConfig `mapstructure:"roles"`
	OpenAI    ProviderConfig        `mapstructure:"openai"`
	Anthropic ProviderConfig        `mapstructure:"anthropic"`
	Breaker   model.BreakerConfig   `mapstructure:"breaker"`
	RateLimit model.RateLimitConfig `mapstructure:"rate_limit"`
	// TokenCounter sizes agent memory: "approx" or a tiktoken encoding
	// such as "cl100k_base".
	TokenCounter string `mapstructure:"token_counter"`
}

// ProviderConfig holds provider wide credentials.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// RoleConfig selects the model of one role.
type RoleConfig struct {
	// Provider is "openai", "anthropic" or "mock".
	Provider      string  `mapstructure:"provider"`
	Model         string  `mapstructure:"model"`
	Temperature   float64 `mapstructure:"temperature"`
	MaxTokens     int64   `mapstructure:"max_tokens"`
	ContextWindow int     `mapstructure:"context_window"`
}

// LoggingConfig selects level and format of the process logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Providers accepted in RoleConfig.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

// Load reads the configuration. An empty path searches the default
// locations; a missing default file is not an error, a missing explicit
// file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("beehive")
		v.AddConfigPath(".")
		if dir := userConfigDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.openai.api_key", "OPENAI_API_KEY", EnvPrefix+"_LLM_OPENAI_API_KEY")
	_ = v.BindEnv("llm.anthropic.api_key", "ANTHROPIC_API_KEY", EnvPrefix+"_LLM_ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.LLM.OpenAI.APIKey = os.ExpandEnv(cfg.LLM.OpenAI.APIKey)
	cfg.LLM.Anthropic.APIKey = os.ExpandEnv(cfg.LLM.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("platform.url", "http://127.0.0.1:8333/mcp/sse")
	v.SetDefault("platform.client_name", "beehive")
	v.SetDefault("platform.run_timeout", 10_000_000*time.Millisecond)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("engine.supervisor_id", "supervisor")
	v.SetDefault("engine.operator_pool_size", 10)
	v.SetDefault("engine.policy.max_iterations", core.SupervisorPolicy.MaxIterations)
	v.SetDefault("engine.policy.max_retries_per_step", core.SupervisorPolicy.MaxRetriesPerStep)
	v.SetDefault("engine.policy.total_max_retries", core.SupervisorPolicy.TotalMaxRetries)

	v.SetDefault("llm.roles.default.provider", ProviderOpenAI)
	v.SetDefault("llm.roles.default.model", "gpt-4o-mini")
	v.SetDefault("llm.roles.default.temperature", 0.7)
	v.SetDefault("llm.token_counter", "approx")
	v.SetDefault("llm.breaker.max_failures", 5)
	v.SetDefault("llm.breaker.timeout", 30*time.Second)
	v.SetDefault("llm.breaker.interval", 60*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "noop")
}

// Validate reports settings a process cannot start with.
func (c *Config) Validate() error {
	if c.Platform.URL == "" {
		return errors.New("config: platform.url is required")
	}
	if err := c.Engine.Policy.Validate(); err != nil {
		return fmt.Errorf("config: engine.policy: %w", err)
	}
	if c.Engine.OperatorPoolSize <= 0 {
		return fmt.Errorf("config: engine.operator_pool_size must be positive, got %d", c.Engine.OperatorPoolSize)
	}
	for role, rc := range c.LLM.Roles {
		switch rc.Provider {
		case ProviderOpenAI, ProviderAnthropic, ProviderMock:
		default:
			return fmt.Errorf("config: llm.roles.%s: unsupported provider %q", role, rc.Provider)
		}
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("config: logging.level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger writing to w.
func (c LoggingConfig) NewLogger(w io.Writer) (*logging.BeehiveLogger, error) {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	format := c.Format
	if format == "" {
		format = "json"
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: format,
		Output: w,
	}), nil
}

func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "beehive")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "beehive")
}
