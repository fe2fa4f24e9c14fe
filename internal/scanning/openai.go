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

// OpenAI implements the Adapter interface using the OpenAI chat completions API
type OpenAI struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAI creates a new OpenAI Adapter instance
func NewOpenAI(apiKey, baseURL, modelName string, timeout time.Duration) (*OpenAI, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Vendor: VendorOpenAI, Reason: "api key is required"}
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if modelName == "" {
		modelName = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string          `json:"role"`
	Content []openAIContent `json:"content"`
}

type openAIContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// AnalyzeReceipt sends the image and prompt to OpenAI and returns the generated text
func (o *OpenAI) AnalyzeReceipt(ctx context.Context, imageData []byte, prompt string) (string, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(imageData)

	reqBody := openAIRequest{
		Model:     o.model,
		MaxTokens: 1024,
		Messages: []openAIMessage{
			{
				Role: "user",
				Content: []openAIContent{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &openAIImageURL{URL: "data:image/jpeg;base64," + imageBase64}},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	slog.Debug("Calling OpenAI", "model", o.model, "image_size", len(imageData))

	resp, err := o.client.Do(req)
	if err != nil {
		return "", &TransportError{Vendor: VendorOpenAI, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &TransportError{Vendor: VendorOpenAI, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var chatResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", &TransportError{Vendor: VendorOpenAI, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", &TransportError{Vendor: VendorOpenAI, Err: ErrEmptyResponse}
	}

	text := chatResp.Choices[0].Message.Content
	slog.Debug("OpenAI response", "text", text)

	return text, nil
}

// Close closes the OpenAI client (no-op for HTTP client)
func (o *OpenAI) Close() error {
	return nil
}
