// ABOUTME: Message persistence for the SQLite store
// ABOUTME: Append-only log, (created_at, rowid) total order, monotonic read flag

package store

import (
	"context"
	"fmt"
	"time"
)

// SaveMessage appends a message to the conversation log. The rowid assigned
// by SQLite becomes the message's Seq, which breaks created_at ties in the
// list ordering.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender, body, created_at, read)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	res, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.ConversationID,
		msg.Sender,
		msg.Body,
		msg.CreatedAt.UTC().UnixMicro(),
		boolToInt(msg.Read),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if seq, err := res.LastInsertId(); err == nil {
		msg.Seq = seq
	}

	s.logger.Debug("message saved",
		"message_id", msg.ID,
		"conversation_id", msg.ConversationID,
		"sender", msg.Sender)
	return nil
}

// ListMessages returns the full message log for a conversation, sorted
// ascending by (created_at, rowid). The ordering is total: same-instant
// appends are resolved by insertion order.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	query := `
		SELECT rowid, id, conversation_id, sender, body, created_at, read
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg := &Message{}
		var createdAt int64
		var read int

		if err := rows.Scan(
			&msg.Seq,
			&msg.ID,
			&msg.ConversationID,
			&msg.Sender,
			&msg.Body,
			&createdAt,
			&read,
		); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		msg.CreatedAt = time.UnixMicro(createdAt).UTC()
		msg.Read = read != 0
		msgs = append(msgs, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating message rows: %w", err)
	}

	return msgs, nil
}

// MarkMessagesRead flips the read flag on every message in the conversation
// not sent by reader. Already-read messages are untouched, so the operation
// is idempotent. Returns the number of messages newly marked.
func (s *SQLiteStore) MarkMessagesRead(ctx context.Context, conversationID, reader string) (int64, error) {
	query := `
		UPDATE messages
		SET read = 1
		WHERE conversation_id = ? AND sender != ? AND read = 0
	`

	res, err := s.db.ExecContext(ctx, query, conversationID, reader)
	if err != nil {
		return 0, fmt.Errorf("marking messages read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking mark result: %w", err)
	}

	if n > 0 {
		s.logger.Debug("messages marked read",
			"conversation_id", conversationID,
			"reader", reader,
			"count", n)
	}
	return n, nil
}

// CountUnread returns the number of unread messages in the conversation that
// were not sent by viewer.
func (s *SQLiteStore) CountUnread(ctx context.Context, conversationID, viewer string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = ? AND sender != ? AND read = 0
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, conversationID, viewer).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	return count, nil
}

// CountUnreadTotal aggregates unread counts across every conversation the
// viewer participates in.
func (s *SQLiteStore) CountUnreadTotal(ctx context.Context, viewer string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN conversations c ON m.conversation_id = c.id
		WHERE m.read = 0
		  AND m.sender != ?
		  AND (c.participant_low = ? OR c.participant_high = ?)
	`

	var count int
	if err := s.db.QueryRowContext(ctx, query, viewer, viewer, viewer).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting total unread: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
