package domain

import (
	"context"
	"errors"
)

const (
	tokensPerMillion = 1_000_000
	centsPerDollar   = 100
)

// StandardCostCalculator computes cost from the model catalog's integer
// minor-currency pricing. The cents-per-million representation is converted
// to dollars only at the very end, so no float error accumulates across the
// token multiplication.
type StandardCostCalculator struct {
	catalog *ModelCatalog
}

// NewStandardCostCalculator creates a cost calculator backed by the catalog.
func NewStandardCostCalculator(catalog *ModelCatalog) *StandardCostCalculator {
	return &StandardCostCalculator{catalog: catalog}
}

// Calculate returns the estimated cost in USD for the given usage. Unknown
// models cost zero; missing pricing is not an error for the request.
func (c *StandardCostCalculator) Calculate(_ context.Context, model string, usage Usage) (float64, error) {
	if model == "" {
		return 0, errors.New("model cannot be empty")
	}

	desc, ok := c.catalog.Get(model)
	if !ok {
		return 0, nil
	}

	inputCents := float64(int64(usage.PromptTokens)*desc.InputCostPerMTok) / tokensPerMillion
	outputCents := float64(int64(usage.CompletionTokens)*desc.OutputCostPerMTok) / tokensPerMillion

	return (inputCents + outputCents) / centsPerDollar, nil
}
