package model

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies why a single fetch failed.
type FetchErrorKind string

const (
	FetchNetwork           FetchErrorKind = "network"
	FetchRateLimited       FetchErrorKind = "rate_limited"
	FetchNotFound          FetchErrorKind = "not_found"
	FetchMalformedResponse FetchErrorKind = "malformed_response"
)

// FetchError is the failure of one fetch attempt against one provider. It is
// caught and isolated by the orchestrator; it never aborts sibling fetches.
type FetchError struct {
	Kind     FetchErrorKind
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError wraps err as a classified fetch failure from the named
// provider.
func NewFetchError(kind FetchErrorKind, provider string, err error) *FetchError {
	return &FetchError{Kind: kind, Provider: provider, Err: err}
}

// FetchKind extracts the classification from an error chain. The second
// return is false when the chain contains no FetchError.
func FetchKind(err error) (FetchErrorKind, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
