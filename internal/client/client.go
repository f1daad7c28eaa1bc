// ABOUTME: HTTP client for the batchtalk API.
// ABOUTME: Wraps the route surface with typed methods and a transient-error test.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Shameer2006/batchtalk/internal/api"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsTransient reports whether an error is worth retrying: server-side 5xx
// responses and transport failures are transient, 4xx rejections are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	// Anything that never produced a response (dial, timeout, reset) may
	// succeed on retry.
	return true
}

// Client talks to a batchtalk server over HTTP.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New creates a client for the server at baseURL authenticating with token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
}

// SendResult reports the outcome of a send: the accepted message, or just
// its id when the server recognized the idempotency key from an earlier
// attempt.
type SendResult struct {
	Message   api.Message
	Duplicate bool
}

// OpenConversation resolves (or creates) the conversation with peer.
func (c *Client) OpenConversation(ctx context.Context, peer string, productContext json.RawMessage) (*api.Conversation, error) {
	req := map[string]any{"peer": peer}
	if len(productContext) > 0 {
		req["productContext"] = productContext
	}
	var conv api.Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Conversations lists the account's conversations, most recent first.
func (c *Client) Conversations(ctx context.Context) ([]api.ConversationSummary, error) {
	var out []api.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages returns the full ordered log of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]api.Message, error) {
	var out []api.Message
	path := fmt.Sprintf("/api/conversations/%s/messages", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Send appends a message. The idempotency key makes retries safe: the server
// returns the originally accepted message id instead of appending twice. Pass
// "" to generate a fresh key for a first attempt.
func (c *Client) Send(ctx context.Context, conversationID, body, idempotencyKey string) (*SendResult, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	path := fmt.Sprintf("/api/conversations/%s/messages", conversationID)
	resp, err := c.roundTrip(ctx, http.MethodPost, path,
		map[string]string{"body": body},
		map[string]string{"Idempotency-Key": idempotencyKey})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}

	if resp.StatusCode == http.StatusCreated {
		var msg api.Message
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &SendResult{Message: msg}, nil
	}

	var dup struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&dup); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &SendResult{Message: api.Message{ID: dup.ID}, Duplicate: true}, nil
}

// MarkRead marks every message from the peer as read.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/conversations/%s/read", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// Unread returns the unread count for one conversation.
func (c *Client) Unread(ctx context.Context, conversationID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	path := fmt.Sprintf("/api/conversations/%s/unread", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// TotalUnread returns the unread count across all conversations.
func (c *Client) TotalUnread(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/unread", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// SignalTyping records a typing signal for the conversation.
func (c *Client) SignalTyping(ctx context.Context, conversationID string) error {
	path := fmt.Sprintf("/api/conversations/%s/typing", conversationID)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// PeerTyping reports whether the other participant is currently typing.
func (c *Client) PeerTyping(ctx context.Context, conversationID string) (bool, error) {
	var out struct {
		Typing bool `json:"typing"`
	}
	path := fmt.Sprintf("/api/conversations/%s/typing", conversationID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.Typing, nil
}

// do performs a request and decodes a JSON response into out (nil to discard).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.roundTrip(ctx, method, path, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any, headers map[string]string) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error == "" {
		payload.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
}
