package tasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fastRetry keeps transport retries quick in tests.
func fastRetry() *RetryConfig {
	return &RetryConfig{
		InitialInterval:     5 * time.Millisecond,
		MaxInterval:         20 * time.Millisecond,
		MaxElapsedTime:      2 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.1,
	}
}

// chatHandler returns an HTTP handler that replies with statuses in sequence,
// answering the given content once the sequence is exhausted.
func chatHandler(t *testing.T, statuses []int, content string) (http.HandlerFunc, func() int) {
	t.Helper()
	var mu sync.Mutex
	calls := 0

	handler := func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n := calls
		calls++
		mu.Unlock()

		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}

		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("got %d messages, want system + user", len(req.Messages))
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
	return handler, count
}

func TestCompleteSuccess(t *testing.T) {
	handler, calls := chatHandler(t, nil, "bonjour")
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := NewChatClient(ClientConfig{BaseURL: srv.URL, Model: "test", Retry: fastRetry()})

	got, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "bonjour" {
		t.Errorf("content = %q, want %q", got, "bonjour")
	}
	if calls() != 1 {
		t.Errorf("calls = %d, want 1", calls())
	}
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	handler, calls := chatHandler(t, []int{http.StatusInternalServerError, http.StatusTooManyRequests}, "ok")
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := NewChatClient(ClientConfig{BaseURL: srv.URL, Model: "test", Retry: fastRetry()})

	got, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if got != "ok" {
		t.Errorf("content = %q, want %q", got, "ok")
	}
	if calls() != 3 {
		t.Errorf("calls = %d, want 3 (2 transient failures + success)", calls())
	}
}

func TestCompleteClientErrorIsPermanent(t *testing.T) {
	handler, calls := chatHandler(t, []int{http.StatusUnauthorized, http.StatusUnauthorized}, "never")
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := NewChatClient(ClientConfig{BaseURL: srv.URL, Model: "test", Retry: fastRetry()})

	if _, err := client.Complete(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for 401 response")
	}
	if calls() != 1 {
		t.Errorf("calls = %d, want 1 (4xx must not be retried)", calls())
	}
}

func TestCompleteContextCancelled(t *testing.T) {
	handler, _ := chatHandler(t, nil, "late")
	srv := httptest.NewServer(handler)
	defer srv.Close()

	client := NewChatClient(ClientConfig{BaseURL: srv.URL, Model: "test", Retry: fastRetry()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Complete(ctx, "system", "user"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := NewChatClient(ClientConfig{BaseURL: srv.URL, Model: "test", Retry: fastRetry()})

	if _, err := client.Complete(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestCompleteSendsAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": "hi"}},
			},
		})
	}))
	defer srv.Close()

	client := NewChatClient(ClientConfig{BaseURL: srv.URL, Model: "test", APIKey: "secret", Retry: fastRetry()})

	if _, err := client.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer secret")
	}
}
