// Package echo provides a deterministic in-memory provider that echoes
// back input messages. It implements every capability contract without
// external calls, so development wiring and end-to-end tests can exercise
// the full orchestration pipeline. For the same input it always produces
// the same output, which also makes it the reference provider for the
// stream-equals-completion property.
package echo

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/observability"
)

const (
	providerName = "echo"

	// embedDimension is the fixed dimension of deterministic embeddings.
	embedDimension = 8
)

// Adapter implements domain.Provider, domain.Streamer, and domain.Embedder
// entirely in memory.
type Adapter struct {
	name string
}

// NewAdapter creates an echo adapter. No configuration is required.
func NewAdapter() *Adapter {
	return &Adapter{name: providerName}
}

// Name returns the provider identifier.
func (a *Adapter) Name() string {
	return a.name
}

// Complete echoes the concatenated input back as the response content.
func (a *Adapter) Complete(ctx context.Context, messages []domain.Message, opts *domain.ResolvedOptions) (*domain.CompletionResponse, error) {
	logger := observability.FromContext(ctx)
	logger.Debug("echoing request")

	content := buildEchoContent(messages)
	promptTokens := countTokens(content)

	return &domain.CompletionResponse{
		ID:           fmt.Sprintf("echo-%x", sha256.Sum256([]byte(content)))[:16],
		Model:        opts.Model,
		Provider:     a.name,
		Content:      content,
		FinishReason: domain.FinishStop,
		Usage:        domain.NewUsage(promptTokens, promptTokens),
		FinishTime:   time.Now(),
	}, nil
}

// Stream echoes the content word by word. Concatenating all deltas yields
// exactly the content of the equivalent Complete call.
func (a *Adapter) Stream(ctx context.Context, messages []domain.Message, opts *domain.ResolvedOptions) (<-chan domain.StreamChunk, error) {
	content := buildEchoContent(messages)
	promptTokens := countTokens(content)

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)

		words := strings.SplitAfter(content, " ")
		for _, word := range words {
			if word == "" {
				continue
			}
			select {
			case chunks <- domain.StreamChunk{Delta: word}:
			case <-ctx.Done():
				return
			}
		}

		usage := domain.NewUsage(promptTokens, promptTokens)
		select {
		case chunks <- domain.StreamChunk{Done: true, FinishReason: domain.FinishStop, Usage: &usage}:
		case <-ctx.Done():
		}
	}()

	return chunks, nil
}

// Embed produces a deterministic unit-normalized vector per input derived
// from its hash.
func (a *Adapter) Embed(_ context.Context, inputs []string, opts *domain.ResolvedOptions) (*domain.EmbeddingResponse, error) {
	vectors := make([][]float64, 0, len(inputs))
	totalTokens := 0

	for _, input := range inputs {
		vectors = append(vectors, embedText(input))
		totalTokens += countTokens(input)
	}

	return &domain.EmbeddingResponse{
		Vectors:  vectors,
		Model:    opts.Model,
		Provider: a.name,
		Usage:    domain.NewUsage(totalTokens, 0),
	}, nil
}

// buildEchoContent concatenates the user-visible text of all messages.
func buildEchoContent(messages []domain.Message) string {
	parts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if text := msg.Text(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// countTokens approximates token usage with whitespace word counting.
func countTokens(text string) int {
	return len(strings.Fields(text))
}

// embedText maps text to a stable unit vector via its sha256 digest.
func embedText(text string) []float64 {
	digest := sha256.Sum256([]byte(text))

	vec := make([]float64, embedDimension)
	for i := 0; i < embedDimension; i++ {
		raw := binary.BigEndian.Uint32(digest[i*4 : i*4+4])
		vec[i] = float64(raw)/float64(1<<31) - 1.0 // [-1, 1)
	}
	return domain.Normalize(vec)
}
