// Package tasks contains the concrete units of work scheduled by the
// execution engine: simulated unreliable computation, chat-service-backed
// text analysis and translation, and the merge step that combines their
// outputs. Nothing in this package influences scheduling or retry logic;
// tasks interact with the engine only through the scheduler.Runner contract.
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// Completer is the text-completion capability the analysis and translation
// tasks depend on. ChatClient is the production implementation; tests supply
// their own.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// RetryConfig configures exponential backoff for transport-level retries.
// This is independent of the scheduler's per-task retry policy: it smooths
// over transient HTTP failures within a single task attempt.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default transport retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// ClientConfig configures a ChatClient.
type ClientConfig struct {
	BaseURL    string
	Model      string
	APIKey     string
	HTTPClient *http.Client // Nil uses a client with a 60s timeout
	Retry      *RetryConfig // Nil uses DefaultRetryConfig
}

// ChatClient calls an OpenAI-style chat-completions endpoint with
// exponential backoff retry and circuit breaker protection.
type ChatClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
	retryCfg   RetryConfig
	breaker    *gobreaker.CircuitBreaker
}

// NewChatClient creates a chat client for the given endpoint.
func NewChatClient(cfg ClientConfig) *ChatClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	retryCfg := DefaultRetryConfig()
	if cfg.Retry != nil {
		retryCfg = *cfg.Retry
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BaseURL,
		MaxRequests: 3,                // Test requests allowed in half-open state
		Timeout:     30 * time.Second, // Stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Don't count caller cancellation as a service failure.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	return &ChatClient{
		httpClient: httpClient,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		retryCfg:   retryCfg,
		breaker:    breaker,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// retryableStatusError marks an HTTP status worth retrying (rate limits and
// server-side failures).
type retryableStatusError struct {
	status int
}

func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("service returned status %d", e.status)
}

// Complete sends one system+user prompt pair and returns the first choice's
// content, retrying transient failures with exponential backoff behind the
// circuit breaker.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var content string

	operation := func() error {
		// Check context first - fail fast if cancelled.
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.complete(ctx, systemPrompt, userPrompt)
		})

		if err != nil {
			// Circuit is open - don't retry.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}

			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}

			// Transient statuses and transport errors are retried; errors
			// marked permanent by the round trip stop the loop.
			return err
		}

		content = result.(string)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryCfg.InitialInterval
	policy.MaxInterval = c.retryCfg.MaxInterval
	policy.MaxElapsedTime = c.retryCfg.MaxElapsedTime
	policy.Multiplier = c.retryCfg.Multiplier
	policy.RandomizationFactor = c.retryCfg.RandomizationFactor

	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return content, err
}

// complete performs a single HTTP round trip.
func (c *ChatClient) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("encoding request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &retryableStatusError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", backoff.Permanent(fmt.Errorf("service returned status %d: %s", resp.StatusCode, data))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", backoff.Permanent(errors.New("service returned no choices"))
	}

	return parsed.Choices[0].Message.Content, nil
}
