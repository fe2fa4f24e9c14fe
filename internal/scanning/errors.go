package scanning

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when a vendor answers without any generated text
var ErrEmptyResponse = errors.New("empty response")

// TransportError reports a failed call to a vision vendor
type TransportError struct {
	Vendor     string
	StatusCode int    // zero when no HTTP response was received
	Body       string // response body for non-200 answers
	Err        error
}

func (e *TransportError) Error() string {
	vendor := e.Vendor
	if vendor == "" {
		vendor = "vision"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", vendor, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("calling %s API: %v", vendor, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError reports vendor text that is not a JSON object once fences are removed
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing receipt data: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an unsupported or incomplete vendor configuration
type ConfigurationError struct {
	Vendor string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("vendor %q: %s", e.Vendor, e.Reason)
}
