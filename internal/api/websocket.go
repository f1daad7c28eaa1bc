// ABOUTME: Websocket stream handler pushing newly appended messages to clients.
// ABOUTME: Subscribes to the local broadcaster; clients resync over HTTP on reconnect.

package api

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/Shameer2006/batchtalk/internal/auth"
	"github.com/Shameer2006/batchtalk/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// handleStream streams each newly appended message of one conversation to the
// connected client in append order. The stream is best-effort: a slow client
// may miss messages, and is expected to dedupe by message id and resync with
// a full HTTP list after reconnecting.
func (s *Server) handleStream(conn *websocket.Conn) {
	defer conn.Close()

	account, _ := conn.Locals(auth.LocalsAccountKey).(string)
	conversationID := conn.Params("id")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conv, err := s.chat.Conversation(ctx, conversationID)
	if err != nil || !conv.HasParticipant(account) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not a participant"),
			time.Now().Add(writeWait))
		return
	}

	msgs, subID := s.bus.Subscribe(ctx, conversationID)
	defer s.bus.Unsubscribe(conversationID, subID)

	s.logger.Debug("stream opened",
		"conversation_id", conversationID,
		"account", account,
		"subscriber_id", subID)

	// Reader goroutine: the client sends nothing meaningful, but reading is
	// required to process pongs and to notice the peer closing.
	go func() {
		defer cancel()
		conn.SetReadLimit(1024)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.writeLoop(ctx, conn, msgs)

	s.logger.Debug("stream closed",
		"conversation_id", conversationID,
		"subscriber_id", subID)
}

// writeLoop forwards bus deliveries to the websocket until the context is
// canceled or a write fails.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, msgs <-chan *store.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toWireMessage(msg)); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}
