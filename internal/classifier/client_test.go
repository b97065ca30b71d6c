package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Lora-Technologies/LoraGuard/internal/config"
)

func apiConfig(baseURL string) config.API {
	return config.API{
		Key:       "test-key",
		BaseURL:   baseURL,
		Model:     "lora-moderation-latest",
		Threshold: 0.7,
		Timeout:   2 * time.Second,
	}
}

func breakerConfig(threshold int) config.Breaker {
	return config.Breaker{Enabled: true, FailureThreshold: threshold, ResetWindow: time.Minute}
}

func TestClassifySuccess(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing request id header")
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Input != "some text" || req.Model != "lora-moderation-latest" {
			t.Errorf("unexpected request: %+v", req)
		}

		_ = json.NewEncoder(w).Encode(Response{
			ID:    "resp-1",
			Model: req.Model,
			Results: []Result{{
				Flagged:        true,
				Categories:     map[string]bool{"spam": true},
				CategoryScores: map[string]float64{"spam": 0.92, "hate": 0.1},
			}},
		})
	}))
	defer server.Close()

	client := NewClient(apiConfig(server.URL), breakerConfig(5))
	result, err := client.Classify(context.Background(), "some text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Flagged || result.HighestCategory() != "spam" || result.HighestScore() != 0.92 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClassifyServerErrorIsUnavailable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(apiConfig(server.URL), breakerConfig(5))
	if _, err := client.Classify(context.Background(), "text"); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyParseFailureIsUnavailable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(apiConfig(server.URL), breakerConfig(5))
	if _, err := client.Classify(context.Background(), "text"); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestClassifyEmptyResultsIsUnavailable(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(Response{ID: "resp-2"})
	}))
	defer server.Close()

	client := NewClient(apiConfig(server.URL), breakerConfig(5))
	if _, err := client.Classify(context.Background(), "text"); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestBreakerShortCircuitsAfterFailures(t *testing.T) {
	t.Parallel()
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(apiConfig(server.URL), breakerConfig(2))

	for i := 0; i < 2; i++ {
		if _, err := client.Classify(context.Background(), "text"); err != ErrUnavailable {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	}
	if client.Available() {
		t.Fatal("breaker should be open")
	}

	before := calls.Load()
	if _, err := client.Classify(context.Background(), "text"); err != ErrUnavailable {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls.Load() != before {
		t.Fatal("open breaker must not attempt the network")
	}
}
