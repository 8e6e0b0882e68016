// Package completion is a focused client for an OpenAI-compatible chat
// completions endpoint. Every call asks for a structured reply decision
// enforced through a strict JSON schema.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magidandrew/tg-persona/internal/models"
)

// Turn roles in the reconstructed exchange. Messages authored by our own
// identity are prior replies; everything else is incoming.
const (
	RolePriorReply = "assistant"
	RoleIncoming   = "user"
	roleSystem     = "system"
)

// Turn is one role-tagged message of a completion request.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the minimal request shape for the chat completions endpoint.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Turn          `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the minimal response shape returned by the endpoint.
type chatResponse struct {
	Choices []struct {
		Message Turn `json:"message"`
	} `json:"choices"`
}

// Client calls the completion service.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a completion client. systemPrompt is prepended as the
// leading system turn of every request.
func NewClient(baseURL, apiKey, model, systemPrompt string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("completion: api key must not be empty")
	}
	if model == "" {
		return nil, errors.New("completion: model must not be empty")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	c := &Client{
		baseURL:      baseURL,
		apiKey:       apiKey,
		model:        model,
		systemPrompt: systemPrompt,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Decide sends the reconstructed exchange and returns the service's
// structured decision. Any transport failure or malformed payload is
// returned as an error; the caller treats all of them as recoverable.
func (c *Client) Decide(ctx context.Context, turns []Turn) (models.Decision, error) {
	messages := make([]Turn, 0, len(turns)+1)
	if c.systemPrompt != "" {
		messages = append(messages, Turn{Role: roleSystem, Content: c.systemPrompt})
	}
	messages = append(messages, turns...)

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: replyDecisionResponseFormat(),
	})
	if err != nil {
		return models.Decision{}, fmt.Errorf("completion: marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.Decision{}, fmt.Errorf("completion: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return models.Decision{}, fmt.Errorf("completion: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return models.Decision{}, fmt.Errorf("completion: unexpected status %d: %s", res.StatusCode, string(buf))
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return models.Decision{}, fmt.Errorf("completion: read response: %w", err)
	}

	var payload chatResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.Decision{}, fmt.Errorf("completion: decode response: %w", err)
	}
	if len(payload.Choices) == 0 {
		return models.Decision{}, errors.New("completion: no choices in response")
	}

	return parseDecision(payload.Choices[0].Message.Content)
}

// parseDecision validates the structured decision content.
func parseDecision(content string) (models.Decision, error) {
	var dec models.Decision
	if err := json.Unmarshal([]byte(content), &dec); err != nil {
		return models.Decision{}, fmt.Errorf("completion: decode decision: %w", err)
	}
	if dec.Confidence < 0 || dec.Confidence > 100 {
		return models.Decision{}, fmt.Errorf("completion: confidence %d out of range", dec.Confidence)
	}
	if !models.ValidUrgency(dec.Urgency) {
		return models.Decision{}, fmt.Errorf("completion: unknown urgency %q", dec.Urgency)
	}
	return dec, nil
}

func replyDecisionResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "reply_decision",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"should_respond":{"type":"boolean"},
					"reason":{"type":"string"},
					"confidence":{"type":"integer","minimum":0,"maximum":100},
					"urgency":{"type":"string","enum":["low","medium","high"]},
					"response":{"type":"string"}
				},
				"required":["should_respond","reason","confidence","urgency","response"]
			}`),
		},
	}
}
