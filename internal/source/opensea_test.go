package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestOpenSeaMissingKey(t *testing.T) {
	src := NewOpenSea(OpenSeaOptions{}, noopLogger())
	if _, err := src.Fetch(context.Background(), "azuki"); err == nil {
		t.Fatal("missing api key should fail")
	}
}

func TestOpenSeaFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/azuki/stats" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "key" {
			t.Fatalf("api key header missing")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": map[string]any{"floor_price": 4.25, "floor_price_symbol": "ETH"},
		})
	}))
	defer srv.Close()

	src := NewOpenSea(OpenSeaOptions{APIKey: "key", BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	floor, err := src.Fetch(context.Background(), "azuki")
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if !floor.Equal(decimal.RequireFromString("4.25")) {
		t.Fatalf("expected 4.25, got %s", floor)
	}
}

func TestOpenSeaNullFloor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":{"floor_price":null}}`))
	}))
	defer srv.Close()

	src := NewOpenSea(OpenSeaOptions{APIKey: "key", BaseURL: srv.URL}, noopLogger())
	_, err := src.Fetch(context.Background(), "empty")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenSeaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "collection not found"})
	}))
	defer srv.Close()

	src := NewOpenSea(OpenSeaOptions{APIKey: "key", BaseURL: srv.URL}, noopLogger())
	_, err := src.Fetch(context.Background(), "nope")

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusNotFound || httpErr.Message != "collection not found" {
		t.Fatalf("unexpected error detail: %+v", httpErr)
	}
}
