package nl2sql

import (
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown or unconfigured provider")

// ProviderError reports a backend that answered but did not produce a usable
// completion. Body is the raw response body, unmodified.
type ProviderError struct {
	Provider   Kind
	StatusCode int
	Body       string
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 && (e.StatusCode < 200 || e.StatusCode > 299) {
		return fmt.Sprintf("%s provider returned status %d: %s", e.Provider, e.StatusCode, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s provider returned an unusable response: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s provider returned an unusable response", e.Provider)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

type Reason string

const (
	ReasonUnreachable Reason = "unreachable"
	ReasonTimeout     Reason = "timeout"
)

// ProviderUnavailable reports a backend that could not be reached or did not
// answer in time.
type ProviderUnavailable struct {
	Provider Kind
	Endpoint string
	Reason   Reason
	Cause    error
}

func (e *ProviderUnavailable) Error() string {
	switch {
	case e.Reason == ReasonTimeout && e.Provider == KindLocal:
		return fmt.Sprintf("local model service at %s timed out: the model might still be loading, try again shortly", e.Endpoint)
	case e.Reason == ReasonTimeout:
		return fmt.Sprintf("%s provider at %s timed out", e.Provider, e.Endpoint)
	case e.Provider == KindLocal:
		return fmt.Sprintf("local model service at %s is unreachable: make sure it is running and the model has been downloaded", e.Endpoint)
	default:
		return fmt.Sprintf("%s provider at %s is unreachable: check network connectivity and the configured base URL", e.Provider, e.Endpoint)
	}
}

func (e *ProviderUnavailable) Unwrap() error {
	return e.Cause
}
