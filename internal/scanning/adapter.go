package scanning

import (
	"context"
	"strings"
	"time"
)

// Supported vendor names
const (
	VendorOpenAI    = "openai"
	VendorAnthropic = "anthropic"
	VendorGemini    = "gemini"
	VendorOllama    = "ollama"
)

// Vendors lists the supported vendor names
var Vendors = []string{VendorOpenAI, VendorAnthropic, VendorGemini, VendorOllama}

// Adapter sends an image and prompt to one vision vendor and returns the raw generated text
type Adapter interface {
	// AnalyzeReceipt submits JPEG image bytes with the prompt text
	AnalyzeReceipt(ctx context.Context, imageData []byte, prompt string) (string, error)
	// Close releases any client resources
	Close() error
}

// Config selects and configures a vision vendor
type Config struct {
	Vendor string

	OpenAIKey   string
	OpenAIURL   string
	OpenAIModel string

	AnthropicKey   string
	AnthropicURL   string
	AnthropicModel string

	GeminiKey   string
	GeminiModel string

	OllamaURL   string
	OllamaModel string

	// Timeout bounds a single HTTP round trip
	Timeout time.Duration
}

// NewAdapter builds the adapter named by cfg.Vendor.
// An unknown vendor or a missing API key is a *ConfigurationError.
func NewAdapter(cfg Config) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Vendor)) {
	case VendorOpenAI:
		return NewOpenAI(cfg.OpenAIKey, cfg.OpenAIURL, cfg.OpenAIModel, cfg.Timeout)
	case VendorAnthropic:
		return NewAnthropic(cfg.AnthropicKey, cfg.AnthropicURL, cfg.AnthropicModel, cfg.Timeout)
	case VendorGemini:
		return NewGemini(cfg.GeminiKey, cfg.GeminiModel)
	case VendorOllama:
		return NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.Timeout)
	default:
		return nil, &ConfigurationError{
			Vendor: cfg.Vendor,
			Reason: "unsupported vendor, valid vendors are " + strings.Join(Vendors, ", "),
		}
	}
}
