// ABOUTME: Tests for the HTTP API using fiber's in-process test transport.
// ABOUTME: Covers the route surface, auth, idempotency, and error mapping.

package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shameer2006/batchtalk/internal/auth"
	"github.com/Shameer2006/batchtalk/internal/chat"
	"github.com/Shameer2006/batchtalk/internal/identity"
	"github.com/Shameer2006/batchtalk/internal/live"
	"github.com/Shameer2006/batchtalk/internal/presence"
	"github.com/Shameer2006/batchtalk/internal/store"
)

const testSecret = "api-test-secret"

type testEnv struct {
	server   *Server
	verifier *auth.JWTVerifier
	tracker  *presence.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := live.NewBroadcaster(logger)
	t.Cleanup(bus.Close)

	chatSvc := chat.New(store.NewMockStore(), bus, logger)
	tracker := presence.New(presence.DefaultTTL)
	resolver := identity.NewStaticResolver(map[string]identity.Profile{
		"0xsupplieracct0001": {Name: "Acme Produce", Role: "supplier"},
	})
	verifier := auth.NewJWTVerifier([]byte(testSecret))

	server := New(chatSvc, tracker, bus, resolver, verifier, logger)
	t.Cleanup(func() { _ = server.Shutdown() })

	return &testEnv{server: server, verifier: verifier, tracker: tracker}
}

func (e *testEnv) token(t *testing.T, account string) string {
	t.Helper()
	token, err := e.verifier.Generate(account, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, path, account string, body any, extraHeaders map[string]string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if account != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, account))
	}
	for k, v := range extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := e.server.App().Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) openConversation(t *testing.T, account, peer string) Conversation {
	t.Helper()
	resp := e.request(t, "POST", "/api/conversations", account,
		openConversationRequest{Peer: peer}, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return decodeJSON[Conversation](t, resp)
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "GET", "/healthz", "", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPI_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "GET", "/api/conversations", "", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestOpenConversation(t *testing.T) {
	env := newTestEnv(t)

	conv := env.openConversation(t, "0xSupplierAcct0001", "0xBuyerAcct0002")

	assert.Equal(t, "0xbuyeracct0002_0xsupplieracct0001", conv.ID)
	assert.Equal(t, "0xbuyeracct0002", conv.ParticipantLow)
	assert.Equal(t, "0xsupplieracct0001", conv.ParticipantHigh)

	// Opening from the other side resolves to the same conversation
	same := env.openConversation(t, "0xbuyeracct0002", "0xsupplieracct0001")
	assert.Equal(t, conv.ID, same.ID)
}

func TestOpenConversation_WithSelf(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "POST", "/api/conversations", "0xsupplieracct0001",
		openConversationRequest{Peer: "0xSupplierAcct0001"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSendAndListMessages(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")

	resp := env.request(t, "POST", fmt.Sprintf("/api/conversations/%s/messages", conv.ID),
		"0xsupplieracct0001", sendMessageRequest{Body: "batch 12 ready for pickup"}, nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	sent := decodeJSON[Message](t, resp)
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, conv.ID, sent.ConversationID)
	assert.Equal(t, "0xsupplieracct0001", sent.Sender)
	assert.False(t, sent.Read)

	resp = env.request(t, "GET", fmt.Sprintf("/api/conversations/%s/messages", conv.ID),
		"0xbuyeracct0002", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	msgs := decodeJSON[[]Message](t, resp)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID, msgs[0].ID)
	assert.Equal(t, "batch 12 ready for pickup", msgs[0].Body)
}

func TestSendMessage_IdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")
	path := fmt.Sprintf("/api/conversations/%s/messages", conv.ID)
	headers := map[string]string{"Idempotency-Key": "send-attempt-1"}

	resp := env.request(t, "POST", path, "0xsupplieracct0001",
		sendMessageRequest{Body: "first"}, headers)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	sent := decodeJSON[Message](t, resp)

	// Retry with the same key returns the original id, appends nothing
	resp = env.request(t, "POST", path, "0xsupplieracct0001",
		sendMessageRequest{Body: "first"}, headers)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	dup := decodeJSON[map[string]string](t, resp)
	assert.Equal(t, sent.ID, dup["id"])
	assert.Equal(t, "duplicate", dup["status"])

	resp = env.request(t, "GET", path, "0xsupplieracct0001", nil, nil)
	msgs := decodeJSON[[]Message](t, resp)
	assert.Len(t, msgs, 1)
}

func TestSendMessage_Outsider(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")

	resp := env.request(t, "POST", fmt.Sprintf("/api/conversations/%s/messages", conv.ID),
		"0xintruderacct0003", sendMessageRequest{Body: "let me in"}, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestSendMessage_BodyTooLong(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")

	long := make([]byte, store.MaxBodyLen+1)
	for i := range long {
		long[i] = 'a'
	}
	resp := env.request(t, "POST", fmt.Sprintf("/api/conversations/%s/messages", conv.ID),
		"0xsupplieracct0001", sendMessageRequest{Body: string(long)}, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestMessages_UnknownConversation(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, "GET", "/api/conversations/nope_nothere/messages",
		"0xsupplieracct0001", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReadAndUnreadFlow(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")
	msgPath := fmt.Sprintf("/api/conversations/%s/messages", conv.ID)

	for i := 0; i < 3; i++ {
		resp := env.request(t, "POST", msgPath, "0xsupplieracct0001",
			sendMessageRequest{Body: fmt.Sprintf("update %d", i)}, nil)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp := env.request(t, "GET", fmt.Sprintf("/api/conversations/%s/unread", conv.ID),
		"0xbuyeracct0002", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(3), decodeJSON[map[string]any](t, resp)["count"])

	// Sender sees no unread from their own messages
	resp = env.request(t, "GET", fmt.Sprintf("/api/conversations/%s/unread", conv.ID),
		"0xsupplieracct0001", nil, nil)
	assert.Equal(t, float64(0), decodeJSON[map[string]any](t, resp)["count"])

	resp = env.request(t, "GET", "/api/unread", "0xbuyeracct0002", nil, nil)
	assert.Equal(t, float64(3), decodeJSON[map[string]any](t, resp)["count"])

	resp = env.request(t, "POST", fmt.Sprintf("/api/conversations/%s/read", conv.ID),
		"0xbuyeracct0002", nil, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = env.request(t, "GET", fmt.Sprintf("/api/conversations/%s/unread", conv.ID),
		"0xbuyeracct0002", nil, nil)
	assert.Equal(t, float64(0), decodeJSON[map[string]any](t, resp)["count"])
}

func TestListConversations_PeerLabels(t *testing.T) {
	env := newTestEnv(t)
	env.openConversation(t, "0xbuyeracct0002", "0xsupplieracct0001")

	resp := env.request(t, "GET", "/api/conversations", "0xbuyeracct0002", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	list := decodeJSON[[]ConversationSummary](t, resp)
	require.Len(t, list, 1)

	// Known peer resolves to its configured profile
	assert.Equal(t, "0xsupplieracct0001", list[0].Peer.Address)
	assert.Equal(t, "Acme Produce", list[0].Peer.Name)
	assert.Equal(t, "supplier", list[0].Peer.Role)

	// Unknown peer falls back to a shortened address
	env.openConversation(t, "0xbuyeracct0002", "0xunknownpeeracct9999")
	resp = env.request(t, "GET", "/api/conversations", "0xbuyeracct0002", nil, nil)
	list = decodeJSON[[]ConversationSummary](t, resp)
	require.Len(t, list, 2)
	assert.Equal(t, identity.ShortAddress("0xunknownpeeracct9999"), list[0].Peer.Name)
}

func TestTypingEndpoints(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")
	typingPath := fmt.Sprintf("/api/conversations/%s/typing", conv.ID)

	// Nobody typing yet
	resp := env.request(t, "GET", typingPath, "0xbuyeracct0002", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decodeJSON[map[string]any](t, resp)["typing"])

	// Supplier signals; buyer sees the peer typing
	resp = env.request(t, "POST", typingPath, "0xsupplieracct0001", nil, nil)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp = env.request(t, "GET", typingPath, "0xbuyeracct0002", nil, nil)
	assert.Equal(t, true, decodeJSON[map[string]any](t, resp)["typing"])

	// The signaler's own view asks about the peer, who is not typing
	resp = env.request(t, "GET", typingPath, "0xsupplieracct0001", nil, nil)
	assert.Equal(t, false, decodeJSON[map[string]any](t, resp)["typing"])
}

func TestWebsocketRoute_RequiresUpgrade(t *testing.T) {
	env := newTestEnv(t)
	conv := env.openConversation(t, "0xsupplieracct0001", "0xbuyeracct0002")

	resp := env.request(t, "GET", fmt.Sprintf("/ws/conversations/%s", conv.ID),
		"0xsupplieracct0001", nil, nil)
	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
