package classifier

import (
	"errors"
	"fmt"
)

// Sentinel errors for adapter construction.
var (
	// ErrNoCredentials is returned when Gemini has neither an API key nor
	// application default credentials.
	ErrNoCredentials = errors.New("classifier: no credentials")

	// ErrNoModel is returned when a model name or path is required but missing.
	ErrNoModel = errors.New("classifier: model required")

	// ErrNoEndpoint is returned when a remote adapter has no base URL.
	ErrNoEndpoint = errors.New("classifier: endpoint required")
)

// APIError represents an error response from a remote classifier.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Provider identifies which adapter received the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("classifier [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ProviderError wraps an error with provider context.
type ProviderError struct {
	Provider string
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("classifier [%s]: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
