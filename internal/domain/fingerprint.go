package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// fingerprintPayload is the canonical request shape hashed into a cache
// key. Provider is excluded (it is already part of the composite cache
// key); everything that can change the vendor's answer is included.
type fingerprintPayload struct {
	Model            string           `json:"model"`
	Messages         []Message        `json:"messages"`
	Inputs           []string         `json:"inputs,omitempty"`
	Temperature      float64          `json:"temperature"`
	TopP             float64          `json:"top_p"`
	FrequencyPenalty float64          `json:"frequency_penalty"`
	PresencePenalty  float64          `json:"presence_penalty"`
	MaxTokens        int              `json:"max_tokens"`
	SystemPrompt     string           `json:"system_prompt,omitempty"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	ResponseFormat   ResponseFormat   `json:"response_format,omitempty"`
}

// Fingerprint returns the stable hash of a fully-resolved completion
// request. Identical resolved requests always produce identical
// fingerprints; any field that can alter the response changes it.
func Fingerprint(messages []Message, opts *ResolvedOptions) string {
	return hashPayload(fingerprintPayload{
		Model:            opts.Model,
		Messages:         messages,
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		MaxTokens:        opts.MaxTokens,
		SystemPrompt:     opts.SystemPrompt,
		Tools:            opts.Tools,
		ResponseFormat:   opts.ResponseFormat,
	})
}

// EmbeddingFingerprint returns the stable hash of a resolved embedding
// request.
func EmbeddingFingerprint(inputs []string, opts *ResolvedOptions) string {
	return hashPayload(fingerprintPayload{
		Model:  opts.Model,
		Inputs: inputs,
	})
}

// CacheKey composes the full cache key for a call.
func CacheKey(feature, provider, model, fingerprint string) string {
	return fmt.Sprintf("ember:%s:%s:%s:%s", feature, provider, model, fingerprint)
}

func hashPayload(p fingerprintPayload) string {
	// Struct field order is fixed, so encoding/json is canonical here.
	data, err := json.Marshal(p)
	if err != nil {
		// Marshal of these value types cannot fail; keep the key stable
		// anyway if it somehow does.
		data = []byte(fmt.Sprintf("%+v", p))
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
