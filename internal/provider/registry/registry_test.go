package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberhq/ember/internal/domain"
	"github.com/emberhq/ember/internal/provider/registry"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(context.Context, []domain.Message, *domain.ResolvedOptions) (*domain.CompletionResponse, error) {
	return &domain.CompletionResponse{Provider: s.name, FinishReason: domain.FinishStop}, nil
}

func register(t *testing.T, reg *registry.Registry, id string, priority int, active, hasCredential bool) *stubProvider {
	t.Helper()

	p := &stubProvider{name: id}
	require.NoError(t, reg.Register(p, domain.ProviderDescriptor{
		ID:       id,
		Priority: priority,
		Active:   active,
	}, hasCredential))
	return p
}

func TestRegistry_Register(t *testing.T) {
	t.Run("should reject nil providers", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(nil, domain.ProviderDescriptor{ID: "x"}, true)

		require.Error(t, err)
	})

	t.Run("should reject empty ids", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(&stubProvider{name: ""}, domain.ProviderDescriptor{}, true)

		require.Error(t, err)
	})

	t.Run("should reject mismatched descriptor id", func(t *testing.T) {
		reg := registry.NewRegistry()

		err := reg.Register(&stubProvider{name: "alpha"}, domain.ProviderDescriptor{ID: "beta"}, true)

		require.Error(t, err)
	})

	t.Run("should keep registration order on re-register", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "first", 10, true, true)
		register(t, reg, "second", 10, true, true)

		// Re-registering first with the same priority must not move it
		// behind second in the tie-break.
		register(t, reg, "first", 10, true, true)

		ordered := reg.ByPriority()
		require.Len(t, ordered, 2)
		require.Equal(t, "first", ordered[0].Name())
		require.Equal(t, "second", ordered[1].Name())
	})
}

func TestRegistry_SelectExplicit(t *testing.T) {
	t.Run("should return the registered provider", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "openai", 50, true, true)

		provider, desc, err := reg.SelectExplicit("openai")

		require.NoError(t, err)
		require.Equal(t, "openai", provider.Name())
		require.Equal(t, "openai", desc.ID)
	})

	t.Run("should report not found for unknown ids", func(t *testing.T) {
		reg := registry.NewRegistry()

		_, _, err := reg.SelectExplicit("missing")

		require.Equal(t, domain.KindProviderNotFound, domain.KindOf(err))
	})

	t.Run("should report configuration for inactive providers", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "openai", 50, false, true)

		_, _, err := reg.SelectExplicit("openai")

		require.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	})

	t.Run("should report configuration for providers without credentials", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "openai", 50, true, false)

		_, _, err := reg.SelectExplicit("openai")

		require.Equal(t, domain.KindConfiguration, domain.KindOf(err))
	})
}

func TestRegistry_ByPriority(t *testing.T) {
	t.Run("should order by descending priority", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "low", 5, true, true)
		register(t, reg, "high", 100, true, true)
		register(t, reg, "mid", 50, true, true)

		ordered := reg.ByPriority()

		require.Len(t, ordered, 3)
		require.Equal(t, "high", ordered[0].Name())
		require.Equal(t, "mid", ordered[1].Name())
		require.Equal(t, "low", ordered[2].Name())
	})

	t.Run("should break ties by registration order", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "earlier", 10, true, true)
		register(t, reg, "later", 10, true, true)

		ordered := reg.ByPriority()

		require.Equal(t, "earlier", ordered[0].Name())
		require.Equal(t, "later", ordered[1].Name())
	})

	t.Run("should exclude unusable providers", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "active", 10, true, true)
		register(t, reg, "inactive", 100, false, true)
		register(t, reg, "no-credential", 100, true, false)

		ordered := reg.ByPriority()

		require.Len(t, ordered, 1)
		require.Equal(t, "active", ordered[0].Name())
	})
}

func TestRegistry_Select(t *testing.T) {
	resolved := func(provider string) *domain.ResolvedOptions {
		return domain.Options{Provider: provider}.Resolve(domain.StandardDefaults())
	}

	t.Run("should prefer the explicit provider id", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "high", 100, true, true)
		register(t, reg, "low", 1, true, true)

		provider, _, err := reg.Select(resolved("low"))

		require.NoError(t, err)
		require.Equal(t, "low", provider.Name())
	})

	t.Run("should fail rather than fall back for a bad explicit id", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "high", 100, true, true)

		_, _, err := reg.Select(resolved("missing"))

		require.Equal(t, domain.KindProviderNotFound, domain.KindOf(err))
	})

	t.Run("should use the configured default before priority", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "high", 100, true, true)
		register(t, reg, "preferred", 1, true, true)
		require.NoError(t, reg.SetDefault("preferred"))

		provider, _, err := reg.Select(resolved(""))

		require.NoError(t, err)
		require.Equal(t, "preferred", provider.Name())
	})

	t.Run("should skip an unusable default", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "high", 100, true, true)
		register(t, reg, "broken", 1, false, true)
		require.NoError(t, reg.SetDefault("broken"))

		provider, _, err := reg.Select(resolved(""))

		require.NoError(t, err)
		require.Equal(t, "high", provider.Name())
	})

	t.Run("should fall back to the highest priority usable provider", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "primary", 100, false, true) // inactive
		register(t, reg, "secondary", 50, true, true)
		register(t, reg, "tertiary", 5, true, true)

		provider, _, err := reg.Select(resolved(""))

		require.NoError(t, err)
		require.Equal(t, "secondary", provider.Name())
	})

	t.Run("should report no provider available on an empty registry", func(t *testing.T) {
		reg := registry.NewRegistry()

		_, _, err := reg.Select(resolved(""))

		require.Equal(t, domain.KindNoProviderAvailable, domain.KindOf(err))
	})
}

func TestRegistry_List(t *testing.T) {
	t.Run("should list all ids sorted, usable or not", func(t *testing.T) {
		reg := registry.NewRegistry()
		register(t, reg, "zeta", 1, true, true)
		register(t, reg, "alpha", 1, false, false)

		require.Equal(t, []string{"alpha", "zeta"}, reg.List())
	})

	t.Run("should reject defaulting an unknown provider", func(t *testing.T) {
		reg := registry.NewRegistry()

		require.Error(t, reg.SetDefault("ghost"))
	})
}
