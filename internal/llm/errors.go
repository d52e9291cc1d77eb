package llm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRateLimited matches any *APIError with status 429
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrEmptyResponse is returned when the provider answers without content
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrNoDetection is returned when the model output holds no JSON object
	ErrNoDetection = errors.New("no detection object in model output")
)

// APIError is a non-200 answer from a provider
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 answers
func (e *APIError) Is(target error) bool {
	return target == ErrRateLimited && e.StatusCode == http.StatusTooManyRequests
}

// Retryable reports whether the same request may succeed later
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
