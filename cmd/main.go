package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/dig"

	rediscache "github.com/emberhq/ember/internal/cache/redis"
	"github.com/emberhq/ember/internal/config"
	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/events"
	"github.com/emberhq/ember/internal/httpserver"
	"github.com/emberhq/ember/internal/httpserver/middleware"
	"github.com/emberhq/ember/internal/observability"
	"github.com/emberhq/ember/internal/provider/anthropic"
	"github.com/emberhq/ember/internal/provider/echo"
	"github.com/emberhq/ember/internal/provider/gemini"
	"github.com/emberhq/ember/internal/provider/openai"
	"github.com/emberhq/ember/internal/provider/registry"
	"github.com/emberhq/ember/internal/usage"
)

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	provide := func(constructor any) {
		if err := container.Provide(constructor); err != nil {
			log.Fatalf("Failed to provide dependency: %v", err)
		}
	}

	// Configuration
	provide(config.Load)
	provide(config.ParseDependenciesConfig)

	// Observability
	provide(observability.InitLogger)
	provide(events.NewBus)
	provide(func(bus *events.Bus) domain.EventBus { return bus })
	provide(usage.NewLogRecorder)
	provide(func(rec *usage.LogRecorder) domain.UsageRecorder { return rec })

	// Registry, catalog, pricing
	provide(registry.NewRegistry)
	provide(func(reg *registry.Registry) domain.ProviderRegistry { return reg })
	provide(buildCatalog)
	provide(domain.NewStandardCostCalculator)
	provide(func(calc *domain.StandardCostCalculator) domain.CostCalculator { return calc })

	// Response cache (optional)
	provide(func(cfg *config.Config) domain.ResponseCache {
		if !cfg.Redis.Enabled {
			return nil
		}
		cache, err := rediscache.NewCache(context.Background(), cfg.Redis)
		if err != nil {
			log.Printf("Cache disabled: %v", err)
			return nil
		}
		return cache
	})

	// Orchestrator
	provide(func(
		reg domain.ProviderRegistry,
		catalog *domain.ModelCatalog,
		costs domain.CostCalculator,
		cache domain.ResponseCache,
		bus domain.EventBus,
		recorder domain.UsageRecorder,
		cfg *config.Config,
	) *domain.Orchestrator {
		return domain.NewOrchestrator(reg, catalog, costs, cache, bus, recorder, domain.OrchestratorConfig{
			Defaults:          domain.StandardDefaults(),
			CacheTTL:          time.Duration(cfg.Orchestrator.CacheTTL) * time.Second,
			StreamIdleTimeout: time.Duration(cfg.Orchestrator.StreamIdleTimeout) * time.Second,
		})
	})

	// Register providers with registry (invoked for side effects)
	if err := container.Invoke(registerProviders); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// HTTP Layer
	provide(func(corsCfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(corsCfg)
	})
	provide(httpserver.NewHandler)
	provide(httpserver.NewServer)

	return container
}

// registerProviders wires every adapter with a configured credential into
// the registry. The echo provider is always registered at the lowest
// priority so development setups work without any vendor credential.
func registerProviders(reg *registry.Registry, cfg *config.Config) error {
	if cfg.OpenAI.APIKey != "" {
		openaiCfg := cfg.OpenAI
		openaiCfg.Name = string(domain.DialectOpenAI)
		openaiCfg.Dialect = domain.DialectOpenAI

		adapter, err := openai.NewAdapter(openaiCfg)
		if err != nil {
			return err
		}
		if err := reg.Register(adapter, domain.ProviderDescriptor{
			ID:          adapter.Name(),
			Dialect:     domain.DialectOpenAI,
			BaseURL:     openaiCfg.BaseURL,
			Timeout:     time.Duration(openaiCfg.Timeout) * time.Second,
			RetryBudget: openaiCfg.RetryBudget,
			Priority:    openaiCfg.Priority,
			Active:      true,
		}, true); err != nil {
			return err
		}
	}

	if cfg.Anthropic.APIKey != "" {
		adapter, err := anthropic.NewAdapter(cfg.Anthropic)
		if err != nil {
			return err
		}
		if err := reg.Register(adapter, domain.ProviderDescriptor{
			ID:          adapter.Name(),
			Dialect:     domain.DialectAnthropic,
			BaseURL:     cfg.Anthropic.BaseURL,
			Timeout:     time.Duration(cfg.Anthropic.Timeout) * time.Second,
			RetryBudget: cfg.Anthropic.RetryBudget,
			Priority:    cfg.Anthropic.Priority,
			Active:      true,
		}, true); err != nil {
			return err
		}
	}

	if cfg.Gemini.APIKey != "" {
		adapter, err := gemini.NewAdapter(cfg.Gemini)
		if err != nil {
			return err
		}
		if err := reg.Register(adapter, domain.ProviderDescriptor{
			ID:          adapter.Name(),
			Dialect:     domain.DialectGemini,
			BaseURL:     cfg.Gemini.BaseURL,
			Timeout:     time.Duration(cfg.Gemini.Timeout) * time.Second,
			RetryBudget: cfg.Gemini.RetryBudget,
			Priority:    cfg.Gemini.Priority,
			Active:      true,
		}, true); err != nil {
			return err
		}
	}

	echoAdapter := echo.NewAdapter()
	if err := reg.Register(echoAdapter, domain.ProviderDescriptor{
		ID:          echoAdapter.Name(),
		Dialect:     domain.DialectEcho,
		Timeout:     10 * time.Second,
		RetryBudget: 0,
		Priority:    1,
		Active:      true,
	}, true); err != nil {
		return err
	}

	if cfg.Orchestrator.DefaultProvider != "" {
		if err := reg.SetDefault(cfg.Orchestrator.DefaultProvider); err != nil {
			return err
		}
	}

	return nil
}

// buildCatalog seeds the model catalog. In a full deployment these
// descriptors come from the administrative configuration store; the
// built-in set covers the commonly used models per provider. Costs are
// cents per million tokens.
func buildCatalog() *domain.ModelCatalog {
	catalog := domain.NewModelCatalog()

	models := []domain.ModelDescriptor{
		{
			ID:              "gpt-4o",
			Provider:        "openai",
			VendorModelID:   "gpt-4o",
			ContextLength:   128_000,
			MaxOutputTokens: 16_384,
			Capabilities: domain.NewCapabilitySet(
				domain.CapChat, domain.CapVision, domain.CapStreaming,
				domain.CapTools, domain.CapJSONMode),
			InputCostPerMTok:  250,
			OutputCostPerMTok: 1000,
			Default:           true,
		},
		{
			ID:              "gpt-4o-mini",
			Provider:        "openai",
			VendorModelID:   "gpt-4o-mini",
			ContextLength:   128_000,
			MaxOutputTokens: 16_384,
			Capabilities: domain.NewCapabilitySet(
				domain.CapChat, domain.CapVision, domain.CapStreaming,
				domain.CapTools, domain.CapJSONMode),
			InputCostPerMTok:  15,
			OutputCostPerMTok: 60,
		},
		{
			ID:               "text-embedding-3-small",
			Provider:         "openai",
			VendorModelID:    "text-embedding-3-small",
			Capabilities:     domain.NewCapabilitySet(domain.CapEmbedding),
			InputCostPerMTok: 2,
		},
		{
			ID:              "claude-sonnet-4-5",
			Provider:        "anthropic",
			VendorModelID:   "claude-sonnet-4-5",
			ContextLength:   200_000,
			MaxOutputTokens: 64_000,
			Capabilities: domain.NewCapabilitySet(
				domain.CapChat, domain.CapVision, domain.CapStreaming, domain.CapTools),
			InputCostPerMTok:  300,
			OutputCostPerMTok: 1500,
		},
		{
			ID:              "gemini-2.0-flash",
			Provider:        "gemini",
			VendorModelID:   "gemini-2.0-flash",
			ContextLength:   1_000_000,
			MaxOutputTokens: 8_192,
			Capabilities: domain.NewCapabilitySet(
				domain.CapChat, domain.CapVision, domain.CapTools, domain.CapJSONMode),
			InputCostPerMTok:  10,
			OutputCostPerMTok: 40,
		},
		{
			ID:            "text-embedding-004",
			Provider:      "gemini",
			VendorModelID: "text-embedding-004",
			Capabilities:  domain.NewCapabilitySet(domain.CapEmbedding),
		},
		{
			ID:            "echo-1",
			Provider:      "echo",
			VendorModelID: "echo-1",
			Capabilities: domain.NewCapabilitySet(
				domain.CapChat, domain.CapEmbedding, domain.CapStreaming),
			Default: true,
		},
	}

	for _, m := range models {
		if err := catalog.Add(m); err != nil {
			log.Fatalf("Failed to seed model catalog: %v", err)
		}
	}

	return catalog
}
