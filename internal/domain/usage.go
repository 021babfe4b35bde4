package domain

// Usage carries token accounting for a span, when the integration reports it
type Usage struct {
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	Model               string  `json:"model,omitempty"`
	Cost                float64 `json:"cost"`
}

// modelPricing holds USD cost per million tokens
type modelPricing struct {
	Input  float64
	Output float64
}

var pricingTable = map[string]modelPricing{
	"claude-3-5-haiku":  {Input: 0.80, Output: 4.00},
	"claude-3-5-sonnet": {Input: 3.00, Output: 15.00},
	"claude-sonnet-4":   {Input: 3.00, Output: 15.00},
	"claude-opus-4":     {Input: 15.00, Output: 75.00},
}

// defaultPricing applies when the model is unknown or unreported
var defaultPricing = modelPricing{Input: 3.00, Output: 15.00}

// CalculateCost computes the USD cost of a usage record from the pricing
// table. Matching is by prefix so dated model ids resolve to their family.
func CalculateCost(u Usage) float64 {
	pricing := defaultPricing
	for prefix, p := range pricingTable {
		if u.Model != "" && len(u.Model) >= len(prefix) && u.Model[:len(prefix)] == prefix {
			pricing = p
			break
		}
	}

	const million = 1_000_000
	// Cache reads bill at a tenth of the input rate
	cost := float64(u.InputTokens) * pricing.Input / million
	cost += float64(u.OutputTokens) * pricing.Output / million
	cost += float64(u.CacheReadTokens) * pricing.Input / 10 / million
	cost += float64(u.CacheCreationTokens) * pricing.Input / million
	return cost
}
