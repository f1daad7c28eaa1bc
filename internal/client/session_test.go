// ABOUTME: Tests for the live session helpers.
// ABOUTME: Covers URL scheme mapping, delivery dedupe, and stream/resync ordering.

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shameer2006/batchtalk/internal/api"
)

func TestWsBaseURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080", wsBaseURL("http://localhost:8080"))
	assert.Equal(t, "wss://chat.example.com", wsBaseURL("https://chat.example.com"))
	assert.Equal(t, "ws://already", wsBaseURL("ws://already"))
}

func TestSession_DeliverDedupesById(t *testing.T) {
	var got []string
	s := NewSession(New("http://unused", "t"), "conv-1", func(msg api.Message) {
		got = append(got, msg.ID)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer s.seen.Close()

	s.deliver(api.Message{ID: "msg-1"})
	s.deliver(api.Message{ID: "msg-1"})
	s.deliver(api.Message{ID: "msg-2"})
	s.deliver(api.Message{}) // no id, dropped

	assert.Equal(t, []string{"msg-1", "msg-2"}, got)
}

func TestSession_ResyncReplaysLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/conversations/conv-1/messages", r.URL.Path)
		json.NewEncoder(w).Encode([]api.Message{
			{ID: "msg-1", Body: "first"},
			{ID: "msg-2", Body: "second"},
		})
	}))
	defer srv.Close()

	var got []string
	s := NewSession(New(srv.URL, "t"), "conv-1", func(msg api.Message) {
		got = append(got, msg.ID)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer s.seen.Close()

	require.NoError(t, s.resync(context.Background()))
	assert.Equal(t, []string{"msg-1", "msg-2"}, got)

	// A second resync delivers nothing new
	require.NoError(t, s.resync(context.Background()))
	assert.Equal(t, []string{"msg-1", "msg-2"}, got)
}

func TestSession_DeliverAgainWhenReadFlagFlips(t *testing.T) {
	var got []string
	s := NewSession(New("http://unused", "t"), "conv-1", func(msg api.Message) {
		state := "unread"
		if msg.Read {
			state = "read"
		}
		got = append(got, msg.ID+"/"+state)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer s.seen.Close()

	s.deliver(api.Message{ID: "msg-1"})
	s.deliver(api.Message{ID: "msg-1"}) // unchanged, suppressed
	s.deliver(api.Message{ID: "msg-1", Read: true})
	s.deliver(api.Message{ID: "msg-1", Read: true}) // unchanged again

	assert.Equal(t, []string{"msg-1/unread", "msg-1/read"}, got)
}

// scriptedConn hands out a fixed sequence of pushed messages, then fails
// like a dropped connection.
type scriptedConn struct {
	msgs []api.Message
	i    int
}

func (c *scriptedConn) ReadJSON(v any) error {
	if c.i >= len(c.msgs) {
		return errors.New("connection dropped")
	}
	*(v.(*api.Message)) = c.msgs[c.i]
	c.i++
	return nil
}

func (c *scriptedConn) Close() error { return nil }

func TestSession_FollowSubscribesBeforeResync(t *testing.T) {
	// A message appended after the log is listed but before the stream is up
	// would be lost for the life of the connection, so the list request must
	// only go out once the subscription exists.
	var dialed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, dialed.Load(), "log listed before the stream was connected")
		json.NewEncoder(w).Encode([]api.Message{{ID: "msg-1", Body: "listed"}})
	}))
	defer srv.Close()

	var got []string
	s := NewSession(New(srv.URL, "t"), "conv-1", func(msg api.Message) {
		got = append(got, msg.ID)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer s.seen.Close()

	s.dial = func(ctx context.Context) (streamConn, error) {
		dialed.Store(true)
		return &scriptedConn{msgs: []api.Message{{ID: "msg-2", Body: "pushed"}}}, nil
	}

	err := s.follow(context.Background())
	require.Error(t, err) // read loop ends when the scripted connection drops
	assert.Equal(t, []string{"msg-1", "msg-2"}, got)
}
