// ABOUTME: Live websocket session with resync-on-reconnect semantics.
// ABOUTME: Dedupes deliveries by message id and read state.

package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fasthttp/websocket"

	"github.com/Shameer2006/batchtalk/internal/api"
	"github.com/Shameer2006/batchtalk/internal/dedupe"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	dedupeTTL      = 10 * time.Minute
	dedupeEntries  = 10000
)

// Session follows one conversation live. It combines the push stream with a
// full re-list on every (re)connect: the stream is best-effort, so anything
// dropped while disconnected is recovered from the authoritative log, and
// the dedupe keeps the handler from seeing an unchanged message twice.
type Session struct {
	client         *Client
	wsBase         string
	token          string
	conversationID string
	handler        func(api.Message)
	seen           *dedupe.Cache
	logger         *slog.Logger

	// dial opens the push stream; replaceable in tests.
	dial func(ctx context.Context) (streamConn, error)
}

// streamConn is the slice of the websocket connection the session reads.
type streamConn interface {
	ReadJSON(v any) error
	Close() error
}

// NewSession creates a session for one conversation. The handler is called
// once per distinct observation, in the order observations arrive; a message
// comes back when its read flag changes. Pass nil logger for default.
func NewSession(c *Client, conversationID string, handler func(api.Message), logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		client:         c,
		wsBase:         wsBaseURL(c.baseURL),
		token:          c.token,
		conversationID: conversationID,
		handler:        handler,
		seen:           dedupe.New(dedupeTTL, dedupeEntries),
		logger:         logger.With("component", "session", "conversation_id", conversationID),
	}
	s.dial = s.dialStream
	return s
}

func (s *Session) dialStream(ctx context.Context) (streamConn, error) {
	url := s.wsBase + "/ws/conversations/" + s.conversationID + "?token=" + s.token
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Run connects and follows the conversation until ctx is canceled,
// reconnecting with exponential backoff after failures.
func (s *Session) Run(ctx context.Context) error {
	defer s.seen.Close()

	backoff := initialBackoff
	for {
		if err := s.follow(ctx); err != nil {
			s.logger.Warn("stream closed", "error", err)
		} else {
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// resync replays the authoritative log through the dedupe filter, delivering
// anything the stream missed.
func (s *Session) resync(ctx context.Context) error {
	msgs, err := s.client.Messages(ctx, s.conversationID)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		s.deliver(msg)
	}
	return nil
}

// follow holds one websocket connection open, delivering pushed messages
// until the connection or the context ends.
func (s *Session) follow(ctx context.Context) error {
	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	s.logger.Debug("stream connected")

	// Close the connection when ctx ends so the read below unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	// Resync only after the subscription is established: a message appended
	// between the list response and the dial would otherwise never arrive on
	// this connection. Anything pushed while the list is in flight waits in
	// the connection buffer and is deduped below.
	if err := s.resync(ctx); err != nil {
		return err
	}

	for {
		var msg api.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.deliver(msg)
	}
}

// deliver passes a message to the handler unless an identical observation
// was already delivered. A message is delivered again when its read flag
// changed since it was last seen, so reconcilers learn from resyncs that
// the peer has read their messages.
func (s *Session) deliver(msg api.Message) {
	if msg.ID == "" {
		return
	}
	state := "unread"
	if msg.Read {
		state = "read"
	}
	if prev, ok := s.seen.Lookup(msg.ID); ok && prev == state {
		return
	}
	s.seen.MarkValue(msg.ID, state)
	s.handler(msg)
}

// wsBaseURL converts an http(s) base URL into its ws(s) equivalent.
func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// IsClosedError reports whether err is a normal websocket closure.
func IsClosedError(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, context.Canceled)
}
