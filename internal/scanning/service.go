package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// CorrectionSource supplies the learned correction rules merged into every prompt
type CorrectionSource interface {
	Text() string
}

// Service analyzes receipt images through one vendor adapter
type Service struct {
	adapter     Adapter
	corrections CorrectionSource
	vendor      string
}

// New creates a Service for the vendor selected in cfg
func New(cfg Config, corrections CorrectionSource) (*Service, error) {
	adapter, err := NewAdapter(cfg)
	if err != nil {
		return nil, err
	}
	s := NewService(adapter, corrections)
	s.vendor = cfg.Vendor
	return s, nil
}

// NewService creates a Service around an existing adapter
func NewService(adapter Adapter, corrections CorrectionSource) *Service {
	return &Service{
		adapter:     adapter,
		corrections: corrections,
	}
}

// BuildPrompt returns the prompt for the next analysis, including current corrections
func (s *Service) BuildPrompt() string {
	if s.corrections == nil {
		return BuildPrompt("")
	}
	return BuildPrompt(s.corrections.Text())
}

// AnalyzeReceipt sends imageData to the vendor and parses the answer into a Receipt
func (s *Service) AnalyzeReceipt(ctx context.Context, imageData []byte) (*Receipt, error) {
	prompt := s.BuildPrompt()

	text, err := s.adapter.AnalyzeReceipt(ctx, imageData, prompt)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Vendor: s.vendor, Err: err}
		}
		slog.Error("Failed to analyze receipt", "vendor", s.vendor, "image_size", len(imageData), "error", err)
		return nil, err
	}

	receipt, err := ParseReceipt(text)
	if err != nil {
		slog.Error("Failed to parse receipt", "vendor", s.vendor, "text", text, "error", err)
		return nil, err
	}

	return receipt, nil
}

// Vendor returns the configured vendor name, empty when built with NewService
func (s *Service) Vendor() string {
	return s.vendor
}

// Close closes the underlying adapter
func (s *Service) Close() error {
	if err := s.adapter.Close(); err != nil {
		return fmt.Errorf("closing adapter: %w", err)
	}
	return nil
}
