package tokens

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownModel is returned when a cost estimate is requested for a
// model that is not present in the pricing table. Unknown models are a
// hard configuration error, never silently substituted.
var ErrUnknownModel = errors.New("model not present in pricing table")

// ModelPricing is the USD price per 1,000 tokens for one model.
type ModelPricing struct {
	Input  float64
	Output float64
}

// PricingTable maps a model identifier to its per-1K token pricing.
type PricingTable map[string]ModelPricing

// CostEstimate is the projected USD cost of a token count when sent as
// input and when produced as output.
type CostEstimate struct {
	Input  float64
	Output float64
}

// Add merges another estimate into this one.
func (c *CostEstimate) Add(other CostEstimate) {
	c.Input += other.Input
	c.Output += other.Output
}

// DefaultPricing returns the built-in cost table.
func DefaultPricing() PricingTable {
	return PricingTable{
		"gpt-4":             {Input: 0.03, Output: 0.06},
		"gpt-4-32k":         {Input: 0.06, Output: 0.12},
		"gpt-4o":            {Input: 0.0025, Output: 0.01},
		"gpt-4o-mini":       {Input: 0.00015, Output: 0.0006},
		"gpt-3.5-turbo":     {Input: 0.0010, Output: 0.0020},
		"gpt-3.5-turbo-16k": {Input: 0.0030, Output: 0.0040},
	}
}

// Cost estimates the cost of tokenCount tokens under the named model.
// Returns ErrUnknownModel if the table has no entry for it.
func (t PricingTable) Cost(model string, tokenCount int) (CostEstimate, error) {
	pricing, ok := t[model]
	if !ok {
		return CostEstimate{}, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	thousands := float64(tokenCount) / 1000
	return CostEstimate{
		Input:  thousands * pricing.Input,
		Output: thousands * pricing.Output,
	}, nil
}

// Models returns the table's model identifiers in sorted order.
func (t PricingTable) Models() []string {
	models := make([]string, 0, len(t))
	for m := range t {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
