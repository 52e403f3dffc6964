package openai

import "github.com/emberhq/ember/internal/domain"

// Config contains OpenAI-dialect provider configuration. One adapter
// serves every OpenAI-compatible vendor; the dialect selects the endpoint
// and auth header style when BaseURL is not set explicitly.
type Config struct {
	APIKey          string `env:"OPENAI_API_KEY"`
	BaseURL         string `env:"OPENAI_BASE_URL"`
	Timeout         int    `env:"OPENAI_TIMEOUT"           envDefault:"60"` // seconds
	RetryBudget     int    `env:"OPENAI_RETRY_BUDGET"      envDefault:"2"`
	Priority        int    `env:"OPENAI_PRIORITY"          envDefault:"50"`
	AzureAPIVersion string `env:"AZURE_OPENAI_API_VERSION" envDefault:"2024-06-01"`

	// Name and Dialect are set by the composition root, not the
	// environment: several providers may share this adapter.
	Name    string         `env:"-"`
	Dialect domain.Dialect `env:"-"`
}

// dialectBaseURLs maps each OpenAI-compatible dialect to its public
// endpoint. Azure has no fixed host; its BaseURL must be configured.
var dialectBaseURLs = map[domain.Dialect]string{
	domain.DialectOpenAI:     "https://api.openai.com/v1",
	domain.DialectGroq:       "https://api.groq.com/openai/v1",
	domain.DialectMistral:    "https://api.mistral.ai/v1",
	domain.DialectOpenRouter: "https://openrouter.ai/api/v1",
	domain.DialectOllama:     "http://localhost:11434/v1",
}

// resolveBaseURL returns the configured base URL, falling back to the
// dialect's public endpoint.
func (c Config) resolveBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return dialectBaseURLs[c.Dialect]
}
