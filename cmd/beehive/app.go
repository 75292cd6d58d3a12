package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/beehive"
	"github.com/hupe1980/beehive/config"
	"github.com/hupe1980/beehive/core"
	"github.com/hupe1980/beehive/engine"
	"github.com/hupe1980/beehive/internal/tracer"
	"github.com/hupe1980/beehive/logging"
	"github.com/hupe1980/beehive/memory"
	"github.com/hupe1980/beehive/model"
	"github.com/hupe1980/beehive/model/anthropic"
	"github.com/hupe1980/beehive/model/openai"
	"github.com/hupe1980/beehive/platform"
	"github.com/hupe1980/beehive/registry"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
)

// app holds the process wide components built from the config.
type app struct {
	cfg      *config.Config
	logger   *logging.BeehiveLogger
	hive     *beehive.Hive
	platform *platform.Manager
	factory  *registry.Factory
	engine   *engine.Engine
	fixtures []core.AgentConfig

	shutdownTracer func(context.Context) error
}

func loadApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, logOut)
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := cfg.Logging.NewLogger(logOut)
	if err != nil {
		return nil, err
	}

	shutdown, err := tracer.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	models, err := buildModels(cfg.LLM, logger.WithComponent("model"))
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	counter, err := buildCounter(cfg.LLM.TokenCounter)
	if err != nil {
		logger.Warn("app.token_counter.fallback", "encoding", cfg.LLM.TokenCounter, "error", err.Error())
		counter = memory.ApproxCounter{}
	}

	var fixtures []core.AgentConfig
	if cfg.Fixtures != "" {
		if fixtures, err = config.LoadFixtures(cfg.Fixtures); err != nil {
			_ = shutdown(ctx)
			return nil, err
		}
	}

	engLogger := logger.WithComponent("engine")
	hive := beehive.New(func(o *beehive.Options) {
		o.Models = models
		o.Counter = counter
		o.PlatformURL = cfg.Platform.URL
		o.ClientName = cfg.Platform.ClientName
		o.ClientVersion = version
		o.RunTimeout = cfg.Platform.RunTimeout
		o.SupervisorID = cfg.Engine.SupervisorID
		o.Policy = cfg.Engine.Policy
		o.OperatorPoolSize = cfg.Engine.OperatorPoolSize
		o.Fixtures = fixtures
		o.Logger = logger
		o.Callbacks = []engine.Callback{
			engine.NewLoggingCallback(engine.CallbackAfterInvoke, engLogger),
			engine.NewLoggingCallback(engine.CallbackOnError, engLogger),
		}
	})

	return &app{
		cfg:            cfg,
		logger:         logger,
		hive:           hive,
		platform:       hive.Platform(),
		factory:        hive.Factory(),
		engine:         hive.Engine(),
		fixtures:       fixtures,
		shutdownTracer: shutdown,
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.hive.Close(), a.shutdownTracer(ctx))
}

// buildModels binds one model per configured role, rate limited and behind
// a circuit breaker.
func buildModels(cfg config.LLMConfig, logger logging.Logger) (*model.Registry, error) {
	models := model.NewRegistry()
	for role, rc := range cfg.Roles {
		m, err := newModel(rc, cfg)
		if err != nil {
			return nil, fmt.Errorf("llm role %q: %w", role, err)
		}
		m = model.NewRateLimitedModel(m, cfg.RateLimit)
		models.Register(role, model.NewBreakerModel(m, cfg.Breaker, logger))
	}
	return models, nil
}

func newModel(rc config.RoleConfig, cfg config.LLMConfig) (model.Model, error) {
	switch rc.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if rc.Model != "" {
				o.Model = rc.Model
			}
			if rc.Temperature != 0 {
				o.Temperature = rc.Temperature
			}
			if rc.MaxTokens > 0 {
				o.MaxCompletionTokens = rc.MaxTokens
			}
			if rc.ContextWindow > 0 {
				o.ContextWindow = rc.ContextWindow
			}
			o.APIKey = cfg.OpenAI.APIKey
			o.BaseURL = cfg.OpenAI.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if rc.Model != "" {
				o.Model = anthropicsdk.Model(rc.Model)
			}
			if rc.Temperature != 0 {
				o.Temperature = rc.Temperature
			}
			if rc.MaxTokens > 0 {
				o.MaxTokens = rc.MaxTokens
			}
			if rc.ContextWindow > 0 {
				o.ContextWindow = rc.ContextWindow
			}
			o.APIKey = cfg.Anthropic.APIKey
		}), nil
	case config.ProviderMock:
		name := rc.Model
		if name == "" {
			name = "mock"
		}
		m := model.NewMockModel(name, config.ProviderMock)
		if rc.ContextWindow > 0 {
			m.WithMaxTokens(rc.ContextWindow)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", rc.Provider)
	}
}

func buildCounter(encoding string) (memory.TokenCounter, error) {
	if encoding == "" || encoding == "approx" {
		return memory.ApproxCounter{}, nil
	}
	return memory.NewTiktokenCounter(encoding)
}
