package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const anthropicVersion = "2023-06-01"

// Anthropic implements the Adapter interface using the Anthropic messages API
type Anthropic struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewAnthropic creates a new Anthropic Adapter instance
func NewAnthropic(apiKey, baseURL, modelName string, timeout time.Duration) (*Anthropic, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Vendor: VendorAnthropic, Reason: "api key is required"}
	}
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if modelName == "" {
		modelName = "claude-3-5-sonnet-20241022"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Anthropic{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	System    string             `json:"system"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// AnalyzeReceipt sends the image and prompt to Anthropic and returns the generated text
func (a *Anthropic) AnalyzeReceipt(ctx context.Context, imageData []byte, prompt string) (string, error) {
	reqBody := anthropicRequest{
		Model:     a.model,
		System:    "You are a helpful assistant that extracts structured data from images of receipts.",
		MaxTokens: 1024,
		Messages: []anthropicMessage{
			{
				Role: "user",
				Content: []anthropicContent{
					{
						Type: "image",
						Source: &anthropicSource{
							Type:      "base64",
							MediaType: "image/jpeg",
							Data:      base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{Type: "text", Text: prompt},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/messages", a.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	slog.Debug("Calling Anthropic", "model", a.model, "image_size", len(imageData))

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &TransportError{Vendor: VendorAnthropic, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &TransportError{Vendor: VendorAnthropic, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var msgResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", &TransportError{Vendor: VendorAnthropic, Err: fmt.Errorf("decoding response: %w", err)}
	}

	// The first text block carries the answer
	for _, block := range msgResp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			slog.Debug("Anthropic response", "text", block.Text)
			return block.Text, nil
		}
	}

	return "", &TransportError{Vendor: VendorAnthropic, Err: ErrEmptyResponse}
}

// Close closes the Anthropic client (no-op for HTTP client)
func (a *Anthropic) Close() error {
	return nil
}
