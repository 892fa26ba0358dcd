package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
)

// SaveMessage appends a chat message to the transcript table.
func (s *Store) SaveMessage(ctx context.Context, msg chat.Message) error {
	var details []byte
	if len(msg.Details) > 0 {
		var err error
		details, err = json.Marshal(msg.Details)
		if err != nil {
			return fmt.Errorf("marshal details: %w", err)
		}
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO messages (id, channel_id, author_id, author, text, system, type, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.ChannelID, msg.AuthorID, msg.Author, msg.Text,
		msg.System, string(msg.Type), details, msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// RecentMessages returns the newest messages of a channel, oldest first.
func (s *Store) RecentMessages(ctx context.Context, channelID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, channel_id, author_id, author, text, system, type, details, created_at
		FROM (
			SELECT * FROM messages WHERE channel_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`, channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		var msgType string
		var details []byte
		if err := rows.Scan(&msg.ID, &msg.ChannelID, &msg.AuthorID, &msg.Author,
			&msg.Text, &msg.System, &msgType, &details, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Type = chat.MessageType(msgType)
		if len(details) > 0 {
			json.Unmarshal(details, &msg.Details)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// OnMessage implements chat.MessageListener: every message lands in the
// transcript asynchronously. Write failures are logged and dropped.
func (s *Store) OnMessage(msg chat.Message) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.SaveMessage(ctx, msg); err != nil {
			s.logger.Warn("transcript write failed",
				zap.String("channel", msg.ChannelID), zap.Error(err))
		}
	}()
}
