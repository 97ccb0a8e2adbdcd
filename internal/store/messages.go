package store

import (
	"context"
	"fmt"
	"time"
)

// Message is a persisted user-authored message plus optional reply metadata.
type Message struct {
	ID        string
	UserID    string
	Content   string
	CreatedAt time.Time
	// ReplyTo is the id of the message this one answers, if any.
	ReplyTo string
	// Responder is the sender key of whoever answered this message.
	Responder string
	// ScriptHash fingerprints the script in effect when the message was sent.
	ScriptHash string
}

// SaveMessage inserts a message.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) SaveMessage(ctx context.Context, m Message) error {
	if m.ID == "" || m.UserID == "" {
		return fmt.Errorf("save message: id and user id are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_messages
		(id, user_id, content, created_at, reply_to, responder, script_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.UserID,
		m.Content,
		m.CreatedAt.UnixMilli(),
		m.ReplyTo,
		m.Responder,
		m.ScriptHash,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// LoadMessages returns every message of userID ordered by created_at, then id.
//
// Returns an empty slice (not nil) if the user has no messages.
func (s *Store) LoadMessages(ctx context.Context, userID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, content, created_at, reply_to, responder, script_hash
		FROM user_messages
		WHERE user_id = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var (
			m       Message
			created int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &created, &m.ReplyTo, &m.Responder, &m.ScriptHash); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
