package cost

import (
	"strings"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// ModelPricing holds per-million-token rates in currency units.
type ModelPricing struct {
	InputTokenCost  float64
	OutputTokenCost float64
}

// ProviderPricing maps model name to its pricing.
type ProviderPricing map[string]ModelPricing

// Token overhead applied on top of raw provider rates (infrastructure and
// evaluation overhead per token).
const (
	InputTokenOverhead  = 0.10
	OutputTokenOverhead = 0.20
)

// Roughly four characters per token for English text.
const charsPerToken = 4

// defaultPricing is used for models missing from the table so an unknown
// model still produces a non-zero estimate instead of looking free.
var defaultPricing = ModelPricing{InputTokenCost: 2.5, OutputTokenCost: 10.0}

var pricingTable = map[string]ProviderPricing{
	"openai": {
		"gpt-5":        {InputTokenCost: 1.25, OutputTokenCost: 10.0},
		"gpt-5-pro":    {InputTokenCost: 15.0, OutputTokenCost: 75.0},
		"gpt-5-mini":   {InputTokenCost: 0.25, OutputTokenCost: 2.0},
		"gpt-5-nano":   {InputTokenCost: 0.05, OutputTokenCost: 0.4},
		"gpt-4o":       {InputTokenCost: 2.5, OutputTokenCost: 10.0},
		"gpt-4o-mini":  {InputTokenCost: 0.15, OutputTokenCost: 0.6},
		"o3":           {InputTokenCost: 60.0, OutputTokenCost: 240.0},
		"o3-pro":       {InputTokenCost: 120.0, OutputTokenCost: 480.0},
		"o4-mini":      {InputTokenCost: 10.0, OutputTokenCost: 40.0},
	},
	"anthropic": {
		"claude-opus-4.1":             {InputTokenCost: 15.0, OutputTokenCost: 75.0},
		"claude-opus-4":               {InputTokenCost: 15.0, OutputTokenCost: 75.0},
		"claude-sonnet-4-5-20250929":  {InputTokenCost: 3.0, OutputTokenCost: 15.0},
		"claude-3-5-sonnet-20241022":  {InputTokenCost: 3.0, OutputTokenCost: 15.0},
		"claude-3-5-haiku-20241022":   {InputTokenCost: 0.8, OutputTokenCost: 4.0},
	},
	"gemini": {
		"gemini-2.5-pro":        {InputTokenCost: 1.25, OutputTokenCost: 10.0},
		"gemini-2.5-flash":      {InputTokenCost: 0.3, OutputTokenCost: 1.2},
		"gemini-2.5-flash-lite": {InputTokenCost: 0.1, OutputTokenCost: 0.4},
		"gemini-2.0-flash":      {InputTokenCost: 0.1, OutputTokenCost: 0.4},
	},
}

// Estimator maps (model, tokens in, tokens out) to an estimated monetary
// cost. It is a pure lookup over a static table; the zero-dependency leaf of
// the engine.
type Estimator struct {
	table map[string]ProviderPricing
}

// NewEstimator creates an estimator over the built-in pricing table.
func NewEstimator() *Estimator {
	return &Estimator{table: pricingTable}
}

// Estimate returns the cost of an invocation in currency units. modelID uses
// the "provider:model" form; bare names default to openai.
func (e *Estimator) Estimate(modelID string, inputTokens, outputTokens int) float64 {
	pricing := e.pricingFor(modelID)

	baseCost := (float64(inputTokens)*pricing.InputTokenCost + float64(outputTokens)*pricing.OutputTokenCost) / 1_000_000.0
	overhead := (float64(inputTokens)*InputTokenOverhead + float64(outputTokens)*OutputTokenOverhead) / 1_000_000.0
	return baseCost + overhead
}

// EstimateForText estimates cost from raw query and response text using the
// chars-per-token approximation.
func (e *Estimator) EstimateForText(modelID, query, response string) float64 {
	return e.Estimate(modelID, EstimateTokens(query), EstimateTokens(response))
}

// ProjectCost estimates the cost of a not-yet-issued attempt: input tokens
// from the query plus an assumed output budget. Used by the escalation
// controller's budget guard.
func (e *Estimator) ProjectCost(modelID, query string, expectedOutputTokens int) float64 {
	return e.Estimate(modelID, EstimateTokens(query), expectedOutputTokens)
}

// EstimateTokens approximates the token count of a text.
func EstimateTokens(text string) int {
	n := len(text) / charsPerToken
	if n == 0 && len(text) > 0 {
		n = 1
	}
	return n
}

func (e *Estimator) pricingFor(modelID string) ModelPricing {
	provider, model := "openai", modelID
	if idx := strings.Index(modelID, ":"); idx > 0 {
		provider = strings.ToLower(modelID[:idx])
		model = modelID[idx+1:]
	}

	providerPricing, exists := e.table[provider]
	if !exists {
		fiberlog.Debugf("Estimator: unknown provider %s, using default pricing", provider)
		return defaultPricing
	}
	pricing, exists := providerPricing[model]
	if !exists {
		fiberlog.Debugf("Estimator: unknown model %s/%s, using default pricing", provider, model)
		return defaultPricing
	}
	return pricing
}
