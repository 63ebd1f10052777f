package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ChannelMessage is one post as returned by the channel messaging API.
type ChannelMessage struct {
	ID   int64  `json:"message_id"`
	Text string `json:"text"`
	Date int64  `json:"date"` // unix seconds
}

// ChannelClient is an established session against the channel messaging
// API. The token is validated once during establishment; afterwards the
// same client is reused across cycles.
type ChannelClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	userAgent  string
}

func dialChannelClient(ctx context.Context, baseURL, token, userAgent string, httpClient *http.Client) (*ChannelClient, error) {
	if token == "" {
		return nil, fmt.Errorf("channel token is not configured")
	}

	c := &ChannelClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		userAgent:  userAgent,
	}

	if err := c.validate(ctx); err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}

	return c, nil
}

func (c *ChannelClient) validate(ctx context.Context) error {
	var result struct {
		Username string `json:"username"`
	}
	return c.call(ctx, "getMe", nil, &result)
}

// ChannelMessages returns up to limit most recent posts from one channel.
func (c *ChannelClient) ChannelMessages(ctx context.Context, channel string, limit int) ([]ChannelMessage, error) {
	params := url.Values{}
	params.Set("chat_id", channel)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var messages []ChannelMessage
	if err := c.call(ctx, "getChannelHistory", params, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

func (c *ChannelClient) call(ctx context.Context, method string, params url.Values, result interface{}) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("channel API error: %s", resp.Status)
	}

	var envelope struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !envelope.OK {
		return fmt.Errorf("channel API rejected %s: %s", method, envelope.Description)
	}

	if result != nil {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}

	return nil
}

// SessionManager owns the cached channel session. Establishment may block;
// callers arriving during an establishment wait for it and reuse its outcome
// instead of dialing a second session. Reset is mutually exclusive with an
// in-progress establishment.
type SessionManager struct {
	mu     sync.Mutex
	client *ChannelClient
	dial   func(ctx context.Context) (*ChannelClient, error)
}

func NewSessionManager(baseURL, token, userAgent string, httpClient *http.Client) *SessionManager {
	return &SessionManager{
		dial: func(ctx context.Context) (*ChannelClient, error) {
			return dialChannelClient(ctx, baseURL, token, userAgent, httpClient)
		},
	}
}

// Client returns the cached session, establishing it on first use. Only a
// fully-established session is ever published.
func (m *SessionManager) Client(ctx context.Context) (*ChannelClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	client, err := m.dial(ctx)
	if err != nil {
		return nil, NewSessionError("channel", err)
	}

	m.client = client
	return client, nil
}

// Reset invalidates the cached session so the next Client call re-establishes
// from scratch. Used operationally when the remote session desynchronizes.
func (m *SessionManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = nil
}

// unixTime converts API seconds to UTC, tolerating zero.
func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
