package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"projectcompanion/config"
	"projectcompanion/internal/model"
	"projectcompanion/pkg/circuitbreaker"
	"projectcompanion/pkg/metrics"
	"projectcompanion/pkg/trace"
)

// AssistantClient calls an OpenAI-compatible chat completions endpoint. The
// circuit breaker keeps a flapping upstream from stalling every chat send.
type AssistantClient struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	httpClient  *http.Client
	cb          *circuitbreaker.CircuitBreaker
}

func NewAssistantClient(cfg config.AIConfig) *AssistantClient {
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
	}

	return &AssistantClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cb: circuitbreaker.NewCircuitBreaker(cbConfig),
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	MaxTokens   int                     `json:"max_tokens,omitempty"`
	Temperature float64                 `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Send builds the message list (system context, bounded history, current
// message) and returns the assistant's raw reply text.
func (c *AssistantClient) Send(ctx context.Context, systemContext string, history []model.ChatMessage, message string) (string, error) {
	msgs := make([]chatCompletionMessage, 0, len(history)+2)
	msgs = append(msgs, chatCompletionMessage{Role: "system", Content: systemContext})
	for _, m := range history {
		msgs = append(msgs, chatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, chatCompletionMessage{Role: "user", Content: message})

	var reply string
	err := c.cb.Execute(func() error {
		start := time.Now()
		body, marshalErr := json.Marshal(chatCompletionRequest{
			Model:       c.model,
			Messages:    msgs,
			MaxTokens:   c.maxTokens,
			Temperature: c.temperature,
		})
		if marshalErr != nil {
			return marshalErr
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if reqErr != nil {
			return reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		if traceID := trace.FromContext(ctx); traceID != "" {
			req.Header.Set(trace.HeaderName(), traceID)
		}

		resp, doErr := c.httpClient.Do(req)
		latency := time.Since(start)

		if doErr != nil {
			metrics.RecordAssistantCallLatency("error", latency)
			return doErr
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			metrics.RecordAssistantCallLatency("5xx", latency)
			return fmt.Errorf("assistant upstream 5xx: %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.RecordAssistantCallLatency(fmt.Sprintf("%d", resp.StatusCode), latency)
			return fmt.Errorf("assistant upstream error: %d", resp.StatusCode)
		}

		metrics.RecordAssistantCallLatency("success", latency)

		var decoded chatCompletionResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
			return fmt.Errorf("failed to decode assistant response: %w", decodeErr)
		}
		if decoded.Error != nil {
			return fmt.Errorf("assistant upstream error: %s", decoded.Error.Message)
		}
		if len(decoded.Choices) == 0 {
			return fmt.Errorf("assistant returned no choices")
		}
		reply = decoded.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return reply, nil
}
