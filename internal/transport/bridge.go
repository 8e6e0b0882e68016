package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Bridge is an HTTP client for the chat-platform sidecar. The sidecar
// owns sessions, identity, and message delivery; this client only speaks
// its small JSON contract: POST /send, GET /history, GET /me.
type Bridge struct {
	baseURL    string
	httpClient *http.Client

	idOnce sync.Once
	id     Identity
	idErr  error
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) BridgeOption {
	return func(b *Bridge) {
		b.httpClient = httpClient
	}
}

// NewBridge creates a Bridge for the sidecar at baseURL.
func NewBridge(baseURL string, opts ...BridgeOption) (*Bridge, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("transport: bridge URL must not be empty")
	}
	b := &Bridge{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

type sendRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

// SendMessage delivers text into a conversation via the sidecar.
func (b *Bridge) SendMessage(ctx context.Context, conversationID, text string) error {
	body, err := json.Marshal(sendRequest{ConversationID: conversationID, Text: text})
	if err != nil {
		return fmt.Errorf("transport: marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("transport: create send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = b.do(req)
	if err != nil {
		return fmt.Errorf("transport: send failed: %w", err)
	}
	return nil
}

// IterateHistory returns up to limit messages, most recent first.
func (b *Bridge) IterateHistory(ctx context.Context, conversationID string, limit int) ([]HistoryMessage, error) {
	q := url.Values{}
	q.Set("conversation_id", conversationID)
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/history?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: create history request: %w", err)
	}

	raw, err := b.do(req)
	if err != nil {
		return nil, fmt.Errorf("transport: history failed: %w", err)
	}

	var history []HistoryMessage
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("transport: decode history: %w", err)
	}
	return history, nil
}

// SelfIdentity resolves the logged-in account from the sidecar once and
// caches it for the process lifetime.
func (b *Bridge) SelfIdentity(ctx context.Context) (Identity, error) {
	b.idOnce.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/me", nil)
		if err != nil {
			b.idErr = fmt.Errorf("transport: create identity request: %w", err)
			return
		}
		raw, err := b.do(req)
		if err != nil {
			b.idErr = fmt.Errorf("transport: identity failed: %w", err)
			return
		}
		if err := json.Unmarshal(raw, &b.id); err != nil {
			b.idErr = fmt.Errorf("transport: decode identity: %w", err)
		}
	})
	return b.id, b.idErr
}

func (b *Bridge) do(req *http.Request) ([]byte, error) {
	res, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d from %s: %s", res.StatusCode, req.URL.Path, string(buf))
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
