package echo_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/provider/echo"
)

func resolvedOpts(model string) *domain.ResolvedOptions {
	return domain.Options{Model: model}.Resolve(domain.StandardDefaults())
}

func TestAdapter_Complete(t *testing.T) {
	adapter := echo.NewAdapter()
	ctx := context.Background()

	t.Run("should echo the message text", func(t *testing.T) {
		resp, err := adapter.Complete(ctx, []domain.Message{
			domain.UserMessage("hello there"),
		}, resolvedOpts("echo-1"))

		require.NoError(t, err)
		require.Equal(t, "hello there", resp.Content)
		require.Equal(t, domain.FinishStop, resp.FinishReason)
		require.Equal(t, "echo", resp.Provider)
	})

	t.Run("should be deterministic", func(t *testing.T) {
		messages := []domain.Message{domain.UserMessage("same input")}

		a, err := adapter.Complete(ctx, messages, resolvedOpts("echo-1"))
		require.NoError(t, err)
		b, err := adapter.Complete(ctx, messages, resolvedOpts("echo-1"))
		require.NoError(t, err)

		require.Equal(t, a.ID, b.ID)
		require.Equal(t, a.Content, b.Content)
		require.Equal(t, a.Usage.TotalTokens, b.Usage.TotalTokens)
	})

	t.Run("should join multiple messages", func(t *testing.T) {
		resp, err := adapter.Complete(ctx, []domain.Message{
			domain.SystemMessage("be brief"),
			domain.UserMessage("ok"),
		}, resolvedOpts("echo-1"))

		require.NoError(t, err)
		require.Equal(t, "be brief ok", resp.Content)
	})

	t.Run("should hold the usage total invariant", func(t *testing.T) {
		resp, err := adapter.Complete(ctx, []domain.Message{
			domain.UserMessage("one two three"),
		}, resolvedOpts("echo-1"))

		require.NoError(t, err)
		require.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
	})
}

func TestAdapter_Stream(t *testing.T) {
	adapter := echo.NewAdapter()
	ctx := context.Background()

	t.Run("should concatenate to the completion content", func(t *testing.T) {
		messages := []domain.Message{domain.UserMessage("the quick brown fox")}

		complete, err := adapter.Complete(ctx, messages, resolvedOpts("echo-1"))
		require.NoError(t, err)

		chunks, err := adapter.Stream(ctx, messages, resolvedOpts("echo-1"))
		require.NoError(t, err)

		var b strings.Builder
		var final *domain.StreamChunk
		for chunk := range chunks {
			require.NoError(t, chunk.Err)
			b.WriteString(chunk.Delta)
			if chunk.Done {
				c := chunk
				final = &c
			}
		}

		require.Equal(t, complete.Content, b.String())
		require.NotNil(t, final)
		require.Equal(t, domain.FinishStop, final.FinishReason)
		require.NotNil(t, final.Usage)
		require.Equal(t, complete.Usage.TotalTokens, final.Usage.TotalTokens)
	})

	t.Run("should stop on context cancellation", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)

		chunks, err := adapter.Stream(cancelCtx, []domain.Message{
			domain.UserMessage("a very long sentence with many words to stream"),
		}, resolvedOpts("echo-1"))
		require.NoError(t, err)

		<-chunks
		cancel()

		// The channel must close without requiring the consumer to drain.
		for range chunks {
		}
	})
}

func TestAdapter_Embed(t *testing.T) {
	adapter := echo.NewAdapter()
	ctx := context.Background()

	t.Run("should produce one unit vector per input", func(t *testing.T) {
		resp, err := adapter.Embed(ctx, []string{"alpha", "beta"}, resolvedOpts("echo-1"))

		require.NoError(t, err)
		require.Len(t, resp.Vectors, 2)
		require.Equal(t, 8, resp.Dimension())

		for _, v := range resp.Vectors {
			sim, simErr := domain.CosineSimilarity(v, v)
			require.NoError(t, simErr)
			require.InDelta(t, 1.0, sim, 1e-9)
		}
	})

	t.Run("should be deterministic per input", func(t *testing.T) {
		a, err := adapter.Embed(ctx, []string{"same"}, resolvedOpts("echo-1"))
		require.NoError(t, err)
		b, err := adapter.Embed(ctx, []string{"same"}, resolvedOpts("echo-1"))
		require.NoError(t, err)

		require.Equal(t, a.Vectors, b.Vectors)
	})

	t.Run("should give different inputs different vectors", func(t *testing.T) {
		resp, err := adapter.Embed(ctx, []string{"alpha", "omega"}, resolvedOpts("echo-1"))
		require.NoError(t, err)

		require.NotEqual(t, resp.Vectors[0], resp.Vectors[1])
	})
}
