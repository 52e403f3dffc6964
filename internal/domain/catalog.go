package domain

import (
	"fmt"
	"sync"
)

// ModelCatalog holds the configured model descriptors, keyed by model id.
// It is populated once at startup from the configuration source and is
// read-mostly thereafter.
type ModelCatalog struct {
	mu     sync.RWMutex
	models map[string]ModelDescriptor
}

// NewModelCatalog creates an empty catalog.
func NewModelCatalog() *ModelCatalog {
	return &ModelCatalog{
		mu:     sync.RWMutex{},
		models: make(map[string]ModelDescriptor),
	}
}

// Add registers a model descriptor, replacing any previous entry for the
// same id.
func (c *ModelCatalog) Add(desc ModelDescriptor) error {
	if desc.ID == "" {
		return fmt.Errorf("model id cannot be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.models[desc.ID] = desc
	return nil
}

// Get returns the descriptor for a model id.
func (c *ModelCatalog) Get(model string) (ModelDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	desc, ok := c.models[model]
	return desc, ok
}

// Supports reports whether the model advertises the capability. Unknown
// models report false for every capability.
func (c *ModelCatalog) Supports(model string, cap Capability) bool {
	desc, ok := c.Get(model)
	if !ok {
		return false
	}
	return desc.Capabilities.Has(cap)
}

// DefaultModel returns the id of the default model for a provider, or "".
func (c *ModelCatalog) DefaultModel(provider string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for id, desc := range c.models {
		if desc.Provider == provider && desc.Default {
			return id
		}
	}
	return ""
}
