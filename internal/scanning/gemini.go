package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Adapter interface using Google Gemini
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGemini creates a new Gemini Adapter instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Vendor: VendorGemini, Reason: "api key is required"}
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetMaxOutputTokens(1024)

	return &Gemini{
		client: client,
		model:  model,
		name:   modelName,
	}, nil
}

// AnalyzeReceipt sends the image and prompt to Gemini and returns the generated text
func (g *Gemini) AnalyzeReceipt(ctx context.Context, imageData []byte, prompt string) (string, error) {
	// genai.ImageData expects just the format suffix (e.g., "jpeg"), not the full MIME type
	parts := []genai.Part{
		genai.ImageData("jpeg", imageData),
		genai.Text(prompt),
	}

	slog.Debug("Calling Gemini", "model", g.name, "image_size", len(imageData))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &TransportError{Vendor: VendorGemini, Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &TransportError{Vendor: VendorGemini, Err: ErrEmptyResponse}
	}

	// Extract text response
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := responseText.String()
	if strings.TrimSpace(text) == "" {
		return "", &TransportError{Vendor: VendorGemini, Err: ErrEmptyResponse}
	}
	slog.Debug("Gemini response", "text", text)

	return text, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
