package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestFetchErrorClassification(t *testing.T) {
	base := errors.New("connection refused")
	fe := NewFetchError(FetchNetwork, "macro", base)

	if !errors.Is(fe, base) {
		t.Error("FetchError must unwrap to its cause")
	}

	wrapped := fmt.Errorf("fetch run: %w", fe)
	kind, ok := FetchKind(wrapped)
	if !ok || kind != FetchNetwork {
		t.Errorf("expected network kind through wrapping, got %v (%v)", kind, ok)
	}
}

func TestFetchKindWithoutFetchError(t *testing.T) {
	if kind, ok := FetchKind(errors.New("plain")); ok || kind != "" {
		t.Errorf("plain error must not classify, got %v (%v)", kind, ok)
	}
	if _, ok := FetchKind(nil); ok {
		t.Error("nil error must not classify")
	}
}

func TestFetchErrorMessage(t *testing.T) {
	withCause := NewFetchError(FetchRateLimited, "market-index", errors.New("429"))
	if got := withCause.Error(); got != "market-index: rate_limited: 429" {
		t.Errorf("unexpected message: %q", got)
	}
	bare := NewFetchError(FetchNotFound, "filings", nil)
	if got := bare.Error(); got != "filings: not_found" {
		t.Errorf("unexpected message: %q", got)
	}
}
