package models

// PLHistoryData is the P/L record for one calendar date.
type PLHistoryData struct {
	Date         string  `json:"date"` // YYYY-MM-DD
	UnrealizedPL float64 `json:"unrealizedPL"`
	RealizedPL   float64 `json:"realizedPL"`
}

// ProviderName selects a quote provider implementation.
type ProviderName string

const (
	// ProviderAlphaVantage uses Alpha Vantage for stocks and estimated option marks
	ProviderAlphaVantage ProviderName = "alphaVantage"
	// ProviderAlpaca uses Alpaca market data for stocks and options
	ProviderAlpaca ProviderName = "alpaca"
	// ProviderTradier uses the Tradier markets API for stocks and options
	ProviderTradier ProviderName = "tradier"
	// ProviderSimulated generates prices locally
	ProviderSimulated ProviderName = "simulated"
)

// Valid returns true if the ProviderName is one of the defined constants
func (p ProviderName) Valid() bool {
	switch p {
	case ProviderAlphaVantage, ProviderAlpaca, ProviderTradier, ProviderSimulated:
		return true
	default:
		return false
	}
}

// APIKeys holds provider credentials.
type APIKeys struct {
	AlphaVantage string `json:"alphaVantage,omitempty"`
	AlpacaKey    string `json:"alpacaKey,omitempty"`
	AlpacaSecret string `json:"alpacaSecret,omitempty"`
	Tradier      string `json:"tradier,omitempty"`
	Gemini       string `json:"gemini,omitempty"`
}

// ProviderSettings is the persisted quote-provider selection.
type ProviderSettings struct {
	Provider ProviderName `json:"provider"`
	Keys     APIKeys      `json:"keys"`
}

// Configured reports whether the selected provider has the credentials it needs.
func (s ProviderSettings) Configured() bool {
	switch s.Provider {
	case ProviderAlpaca:
		return s.Keys.AlpacaKey != "" && s.Keys.AlpacaSecret != ""
	case ProviderTradier:
		return s.Keys.Tradier != ""
	case ProviderSimulated:
		return true
	case ProviderAlphaVantage, "":
		return s.Keys.AlphaVantage != ""
	default:
		return false
	}
}
