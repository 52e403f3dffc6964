package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberhq/ember/internal/domain"
)

func TestOptions_Resolve(t *testing.T) {
	defaults := domain.StandardDefaults()

	t.Run("should apply defaults to unset fields", func(t *testing.T) {
		resolved := domain.Options{}.Resolve(defaults)

		require.InDelta(t, domain.DefaultTemperature, resolved.Temperature, 1e-9)
		require.InDelta(t, domain.DefaultTopP, resolved.TopP, 1e-9)
		require.Equal(t, domain.DefaultMaxTokens, resolved.MaxTokens)
		require.InDelta(t, 0.0, resolved.FrequencyPenalty, 1e-9)
		require.InDelta(t, 0.0, resolved.PresencePenalty, 1e-9)
	})

	t.Run("should keep explicit zero temperature", func(t *testing.T) {
		resolved := domain.Options{Temperature: domain.Float(0)}.Resolve(defaults)

		require.InDelta(t, 0.0, resolved.Temperature, 1e-9)
	})

	t.Run("should clamp temperature above range", func(t *testing.T) {
		resolved := domain.Options{Temperature: domain.Float(3.0)}.Resolve(defaults)

		require.InDelta(t, 2.0, resolved.Temperature, 1e-9)
	})

	t.Run("should clamp temperature below range", func(t *testing.T) {
		resolved := domain.Options{Temperature: domain.Float(-1.0)}.Resolve(defaults)

		require.InDelta(t, 0.0, resolved.Temperature, 1e-9)
	})

	t.Run("should clamp top-p into unit interval", func(t *testing.T) {
		resolved := domain.Options{TopP: domain.Float(1.5)}.Resolve(defaults)
		require.InDelta(t, 1.0, resolved.TopP, 1e-9)

		resolved = domain.Options{TopP: domain.Float(-0.5)}.Resolve(defaults)
		require.InDelta(t, 0.0, resolved.TopP, 1e-9)
	})

	t.Run("should clamp penalties into range", func(t *testing.T) {
		resolved := domain.Options{
			FrequencyPenalty: domain.Float(5),
			PresencePenalty:  domain.Float(-5),
		}.Resolve(defaults)

		require.InDelta(t, 2.0, resolved.FrequencyPenalty, 1e-9)
		require.InDelta(t, -2.0, resolved.PresencePenalty, 1e-9)
	})

	t.Run("should clamp max tokens to minimum of one", func(t *testing.T) {
		resolved := domain.Options{MaxTokens: domain.Int(0)}.Resolve(defaults)
		require.Equal(t, 1, resolved.MaxTokens)

		resolved = domain.Options{MaxTokens: domain.Int(-10)}.Resolve(defaults)
		require.Equal(t, 1, resolved.MaxTokens)
	})

	t.Run("should carry through non-numeric fields", func(t *testing.T) {
		opts := domain.Options{
			Provider:       "openai",
			Model:          "gpt-4o",
			SystemPrompt:   "be brief",
			ResponseFormat: domain.FormatJSON,
			Tools:          []domain.ToolDefinition{{Name: "lookup"}},
		}

		resolved := opts.Resolve(defaults)

		require.Equal(t, "openai", resolved.Provider)
		require.Equal(t, "gpt-4o", resolved.Model)
		require.Equal(t, "be brief", resolved.SystemPrompt)
		require.Equal(t, domain.FormatJSON, resolved.ResponseFormat)
		require.True(t, resolved.HasTools())
	})
}
