// Package ledger computes per-call USD cost and keeps the append-only usage
// log that backs monthly spend reporting and the rate limiter's quota gate.
package ledger

import (
	"sync"
)

// CostCalculator prices a gateway call from its token counts. Flat per-call
// prices (used by the identification and vision gateways, which bill per
// image rather than per token) are stored with PriceOutput left at 0 and
// PriceInput holding the flat USD amount per call.
type CostCalculator struct {
	mu     sync.RWMutex
	prices map[string]*ModelPrice // key: provider:model
}

// ModelPrice is the USD-per-1000-token price for one provider/model pair.
type ModelPrice struct {
	Provider    string
	Model       string
	PriceInput  float64 // USD per 1K prompt tokens, or flat USD per call
	PriceOutput float64 // USD per 1K completion tokens, 0 for flat-rate calls
	FlatRate    bool
}

// NewCostCalculator creates a calculator pre-loaded with the prices of the
// providers this module's gateways actually call.
func NewCostCalculator() *CostCalculator {
	c := &CostCalculator{
		prices: make(map[string]*ModelPrice),
	}
	c.loadDefaultPrices()
	return c
}

// Provider keys below match the vendor names the router's gateways report
// via Name() (router.ProviderClaude etc.), not the vendor's own company
// name, since that's the string Calculate is actually called with.
func (c *CostCalculator) loadDefaultPrices() {
	defaults := []ModelPrice{
		{Provider: "claude", Model: "claude-3-5-sonnet-20241022", PriceInput: 0.003, PriceOutput: 0.015},
		{Provider: "claude", Model: "claude-3-haiku-20240307", PriceInput: 0.00025, PriceOutput: 0.00125},
		{Provider: "openai", Model: "gpt-4o", PriceInput: 0.005, PriceOutput: 0.015},
		{Provider: "openai", Model: "gpt-4o-mini", PriceInput: 0.00015, PriceOutput: 0.0006},
		{Provider: "openai", Model: "gpt-3.5-turbo", PriceInput: 0.0005, PriceOutput: 0.0015},
		{Provider: "openai-embedding", Model: "text-embedding-3-small", PriceInput: 0.00002, PriceOutput: 0},
		{Provider: "plant-id", Model: "v3", PriceInput: 0.03, FlatRate: true},
		{Provider: "gemini", Model: "health-assessment", PriceInput: 0.01, FlatRate: true},
	}

	for _, p := range defaults {
		c.setPrice(p)
	}
}

// SetPrice records a per-token price for provider/model.
func (c *CostCalculator) SetPrice(provider, model string, priceInput, priceOutput float64) {
	c.setPrice(ModelPrice{Provider: provider, Model: model, PriceInput: priceInput, PriceOutput: priceOutput})
}

// SetFlatRatePrice records a flat per-call price for provider/model.
func (c *CostCalculator) SetFlatRatePrice(provider, model string, priceFlat float64) {
	c.setPrice(ModelPrice{Provider: provider, Model: model, PriceInput: priceFlat, FlatRate: true})
}

func (c *CostCalculator) setPrice(p ModelPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := p.Provider + ":" + p.Model
	priceCopy := p
	c.prices[key] = &priceCopy
}

// GetPrice returns the stored price for provider/model, or nil if unknown.
func (c *CostCalculator) GetPrice(provider, model string) *ModelPrice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	key := provider + ":" + model
	return c.prices[key]
}

// Calculate returns the USD cost of a call given its token counts. For
// flat-rate providers tokensInput/tokensOutput are ignored.
func (c *CostCalculator) Calculate(provider, model string, tokensInput, tokensOutput int) float64 {
	price := c.GetPrice(provider, model)
	if price == nil {
		return 0
	}
	if price.FlatRate {
		return price.PriceInput
	}

	inputCost := float64(tokensInput) / 1000 * price.PriceInput
	outputCost := float64(tokensOutput) / 1000 * price.PriceOutput

	return inputCost + outputCost
}

// UpdatePrices bulk-replaces stored prices, e.g. from a config reload.
func (c *CostCalculator) UpdatePrices(prices []ModelPrice) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range prices {
		key := p.Provider + ":" + p.Model
		priceCopy := p
		c.prices[key] = &priceCopy
	}
}

// CostSummary is a running total across a batch of priced calls.
type CostSummary struct {
	TotalCost       float64
	TotalTokens     int
	TokensInput     int
	TokensOutput    int
	RequestCount    int
	AvgCostPerReq   float64
	AvgTokensPerReq float64
}

// CostTracker accumulates an in-memory running total across a batch of
// calls, e.g. for a single chat turn that may fan out to several gateways.
type CostTracker struct {
	calculator *CostCalculator
	mu         sync.Mutex
	summary    CostSummary
}

// NewCostTracker creates a cost tracker backed by calculator.
func NewCostTracker(calculator *CostCalculator) *CostTracker {
	return &CostTracker{
		calculator: calculator,
	}
}

// Track prices one call and folds it into the running summary.
func (t *CostTracker) Track(provider, model string, tokensInput, tokensOutput int) float64 {
	cost := t.calculator.Calculate(provider, model, tokensInput, tokensOutput)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.summary.TotalCost += cost
	t.summary.TokensInput += tokensInput
	t.summary.TokensOutput += tokensOutput
	t.summary.TotalTokens += tokensInput + tokensOutput
	t.summary.RequestCount++

	if t.summary.RequestCount > 0 {
		t.summary.AvgCostPerReq = t.summary.TotalCost / float64(t.summary.RequestCount)
		t.summary.AvgTokensPerReq = float64(t.summary.TotalTokens) / float64(t.summary.RequestCount)
	}

	return cost
}

// Summary returns the accumulated cost summary.
func (t *CostTracker) Summary() CostSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.summary
}

// Reset clears the accumulated summary.
func (t *CostTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary = CostSummary{}
}
