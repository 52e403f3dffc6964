package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	rediscache "github.com/emberhq/ember/internal/cache/redis"
	"github.com/emberhq/ember/internal/provider/anthropic"
	"github.com/emberhq/ember/internal/provider/gemini"
	"github.com/emberhq/ember/internal/provider/openai"
)

// Config represents the gateway configuration.
type Config struct {
	Server       ServerConfig
	CORS         CORSConfig
	Orchestrator OrchestratorConfig
	Redis        rediscache.Config
	OpenAI       openai.Config
	Anthropic    anthropic.Config
	Gemini       gemini.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"300"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// OrchestratorConfig contains orchestration-level settings. Durations are
// seconds.
type OrchestratorConfig struct {
	DefaultProvider   string `env:"DEFAULT_PROVIDER"`
	CacheTTL          int    `env:"CACHE_TTL"           envDefault:"3600"`
	StreamIdleTimeout int    `env:"STREAM_IDLE_TIMEOUT" envDefault:"30"`
}

// DepConfig is used for dependency injection with dig. The vendor configs
// share the type name Config, so the fields are named rather than embedded.
type DepConfig struct {
	dig.Out

	Server       *ServerConfig
	CORS         *CORSConfig
	Orchestrator *OrchestratorConfig
	Redis        *rediscache.Config
	OpenAI       *openai.Config
	Anthropic    *anthropic.Config
	Gemini       *gemini.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:       &cfg.Server,
		CORS:         &cfg.CORS,
		Orchestrator: &cfg.Orchestrator,
		Redis:        &cfg.Redis,
		OpenAI:       &cfg.OpenAI,
		Anthropic:    &cfg.Anthropic,
		Gemini:       &cfg.Gemini,
	}
}
