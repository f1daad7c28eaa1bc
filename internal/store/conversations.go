// ABOUTME: Conversation persistence for the SQLite store
// ABOUTME: Upsert with last-write-wins product context, lookups and activity bumps

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertConversation inserts the conversation or, if a row with the same ID
// already exists, advances last_activity and overwrites product_context with
// the latest non-null value (last writer wins). The stored row is returned,
// so callers see the preserved context when they passed none.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	var contextArg any
	if conv.ProductContext != nil {
		contextArg = string(conv.ProductContext)
	}

	query := `
		INSERT INTO conversations (id, participant_low, participant_high, product_context, last_activity)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_context = COALESCE(excluded.product_context, conversations.product_context),
			last_activity   = excluded.last_activity
	`

	_, err := s.db.ExecContext(ctx, query,
		conv.ID,
		conv.ParticipantLow,
		conv.ParticipantHigh,
		contextArg,
		conv.LastActivity.UTC().UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("upserting conversation: %w", err)
	}

	s.logger.Debug("conversation upserted",
		"conversation_id", conv.ID,
		"has_context", conv.ProductContext != nil)

	return s.GetConversation(ctx, conv.ID)
}

// GetConversation retrieves a conversation by ID
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, participant_low, participant_high, product_context, last_activity
		FROM conversations
		WHERE id = ?
	`

	conv, err := scanConversation(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying conversation: %w", err)
	}
	return conv, nil
}

// ListConversationsByParticipant retrieves every conversation the account
// takes part in, most recently active first.
func (s *SQLiteStore) ListConversationsByParticipant(ctx context.Context, account string) ([]*Conversation, error) {
	query := `
		SELECT id, participant_low, participant_high, product_context, last_activity
		FROM conversations
		WHERE participant_low = ? OR participant_high = ?
		ORDER BY last_activity DESC
	`

	rows, err := s.db.QueryContext(ctx, query, account, account)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var convs []*Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation row: %w", err)
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}

	return convs, nil
}

// TouchConversation advances a conversation's last_activity timestamp.
// last_activity never moves backwards.
func (s *SQLiteStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE conversations
		SET last_activity = MAX(last_activity, ?)
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query, at.UTC().UnixMicro(), id)
	if err != nil {
		return fmt.Errorf("touching conversation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking touch result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	conv := &Conversation{}
	var contextStr sql.NullString
	var lastActivity int64

	if err := row.Scan(
		&conv.ID,
		&conv.ParticipantLow,
		&conv.ParticipantHigh,
		&contextStr,
		&lastActivity,
	); err != nil {
		return nil, err
	}

	if contextStr.Valid {
		conv.ProductContext = json.RawMessage(contextStr.String)
	}
	conv.LastActivity = time.UnixMicro(lastActivity).UTC()
	return conv, nil
}
