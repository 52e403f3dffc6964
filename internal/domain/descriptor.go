package domain

import "time"

// Dialect identifies the vendor protocol an adapter speaks. Several
// OpenAI-compatible vendors share one adapter and differ only in endpoint
// and auth configuration.
type Dialect string

const (
	DialectOpenAI     Dialect = "openai"
	DialectAzure      Dialect = "azure"
	DialectOpenRouter Dialect = "openrouter"
	DialectGroq       Dialect = "groq"
	DialectMistral    Dialect = "mistral"
	DialectAnthropic  Dialect = "anthropic"
	DialectGemini     Dialect = "gemini"
	DialectOllama     Dialect = "ollama"
	DialectEcho       Dialect = "echo"
)

// Capability is an optional behavior a model or adapter may support.
type Capability string

const (
	CapChat      Capability = "chat"
	CapEmbedding Capability = "embedding"
	CapVision    Capability = "vision"
	CapStreaming Capability = "streaming"
	CapTools     Capability = "tools"
	CapJSONMode  Capability = "json_mode"
	CapAudio     Capability = "audio"
)

// CapabilitySet is the set of capabilities a model advertises.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return set
}

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// ProviderDescriptor is the read-only configuration record for one
// registered provider. The core never mutates descriptors; they come from
// the external configuration source. CredentialRef names a credential held
// by that source. The raw secret is handed to the adapter at construction
// time and never stored here.
type ProviderDescriptor struct {
	ID            string
	Dialect       Dialect
	BaseURL       string
	CredentialRef string
	Timeout       time.Duration
	RetryBudget   int // max re-dispatch attempts after the first
	Priority      int // higher wins in the fallback ordering
	Active        bool
}

// ModelDescriptor is the read-only configuration record for one model.
// Costs are stored as integer minor-currency units (cents) per million
// tokens so pricing arithmetic never accumulates float rounding.
type ModelDescriptor struct {
	ID                string
	Provider          string // owning provider id
	VendorModelID     string
	ContextLength     int
	MaxOutputTokens   int
	Capabilities      CapabilitySet
	InputCostPerMTok  int64 // cents per 1M input tokens
	OutputCostPerMTok int64 // cents per 1M output tokens
	Default           bool
}
