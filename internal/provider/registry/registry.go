// Package registry implements the provider registry and the documented
// selection hierarchy: explicit id, then configured default, then highest
// priority active provider, then no-provider-available. That ordering is a
// tested contract and must not be rearranged.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/emberhq/ember/internal/domain"
)

type entry struct {
	provider      domain.Provider
	desc          domain.ProviderDescriptor
	hasCredential bool
	seq           int // registration order, tie-break for equal priorities
}

// Registry implements domain.ProviderRegistry. It is populated once at
// startup and read-mostly thereafter; all operations are safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	defaultID string
	nextSeq   int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:        sync.RWMutex{},
		entries:   make(map[string]*entry),
		defaultID: "",
		nextSeq:   0,
	}
}

// Register adds a provider under its descriptor. Registration is
// idempotent by provider id: re-registering replaces the adapter and
// descriptor but keeps the original registration sequence, so priority
// tie-breaks stay stable across configuration reloads. HasCredential
// reflects whether the configuration source holds a usable secret for the
// provider; the secret itself never reaches the registry.
func (r *Registry) Register(provider domain.Provider, desc domain.ProviderDescriptor, hasCredential bool) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	if desc.ID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}
	if desc.ID != provider.Name() {
		return fmt.Errorf("descriptor id %q does not match provider name %q", desc.ID, provider.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.nextSeq
	if existing, ok := r.entries[desc.ID]; ok {
		seq = existing.seq
	} else {
		r.nextSeq++
	}

	r.entries[desc.ID] = &entry{
		provider:      provider,
		desc:          desc,
		hasCredential: hasCredential,
		seq:           seq,
	}

	return nil
}

// SelectExplicit returns the provider registered under id.
func (r *Registry) SelectExplicit(id string) (domain.Provider, *domain.ProviderDescriptor, error) {
	if id == "" {
		return nil, nil, domain.NewError(domain.KindProviderNotFound, "", "provider id cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, nil, domain.NewError(domain.KindProviderNotFound, id,
			fmt.Sprintf("provider %s is not registered", id))
	}
	if !e.usable() {
		return nil, nil, domain.NewError(domain.KindConfiguration, id,
			fmt.Sprintf("provider %s is not configured (inactive or missing credential)", id))
	}

	desc := e.desc
	return e.provider, &desc, nil
}

// SelectDefault returns the configured default provider if it is usable.
func (r *Registry) SelectDefault() (domain.Provider, *domain.ProviderDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.sortedLocked() {
		if e.defaultFlag {
			desc := e.entry.desc
			return e.entry.provider, &desc, nil
		}
	}

	return nil, nil, domain.NewError(domain.KindNoProviderAvailable, "", "no default provider configured")
}

// ByPriority returns usable providers in descending priority order, ties
// broken by registration order. This is the fallback chain.
func (r *Registry) ByPriority() []domain.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.sortedLocked()
	providers := make([]domain.Provider, 0, len(sorted))
	for _, e := range sorted {
		providers = append(providers, e.entry.provider)
	}
	return providers
}

// Select resolves a provider for the call using the fixed hierarchy.
func (r *Registry) Select(opts *domain.ResolvedOptions) (domain.Provider, *domain.ProviderDescriptor, error) {
	if opts != nil && opts.Provider != "" {
		return r.SelectExplicit(opts.Provider)
	}

	if provider, desc, err := r.SelectDefault(); err == nil {
		return provider, desc, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.sortedLocked()
	if len(sorted) == 0 {
		return nil, nil, domain.NewError(domain.KindNoProviderAvailable, "", "no active provider available")
	}

	desc := sorted[0].entry.desc
	return sorted[0].entry.provider, &desc, nil
}

// SetDefault marks the provider id as the configured default. The default
// flag participates in selection only while the provider stays usable.
func (r *Registry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("provider %s is not registered", id)
	}
	r.defaultID = id
	return nil
}

// List returns the ids of all registered providers (usable or not).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *entry) usable() bool {
	return e.desc.Active && e.hasCredential
}

type sortedEntry struct {
	entry       *entry
	defaultFlag bool
}

// sortedLocked returns usable entries ordered by descending priority with
// a stable registration-order tie-break. Callers hold r.mu.
func (r *Registry) sortedLocked() []sortedEntry {
	usable := make([]sortedEntry, 0, len(r.entries))
	for id, e := range r.entries {
		if !e.usable() {
			continue
		}
		usable = append(usable, sortedEntry{entry: e, defaultFlag: id == r.defaultID})
	}

	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].entry.desc.Priority != usable[j].entry.desc.Priority {
			return usable[i].entry.desc.Priority > usable[j].entry.desc.Priority
		}
		return usable[i].entry.seq < usable[j].entry.seq
	})

	return usable
}
