package chat

import (
	"time"

	"github.com/google/uuid"
)

// MessageType marks special renderings of a message.
type MessageType string

const (
	TypeNormal       MessageType = ""
	TypeAnnouncement MessageType = "announcement"
	TypeVoteStart    MessageType = "vote_start"
	TypeVoteResult   MessageType = "vote_result"
)

// Message is a single chat message in a channel.
type Message struct {
	ID        string                 `json:"id"`
	ChannelID string                 `json:"channel_id"`
	AuthorID  string                 `json:"author_id,omitempty"`
	Author    string                 `json:"author"`
	Text      string                 `json:"text"`
	Timestamp time.Time              `json:"timestamp"`
	ReplyTo   string                 `json:"reply_to,omitempty"`
	System    bool                   `json:"is_system,omitempty"`
	Type      MessageType            `json:"type,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewMessage builds a regular message from an author.
func NewMessage(channelID, authorID, author, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		AuthorID:  authorID,
		Author:    author,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage builds a system notice (joins, moderation actions).
func NewSystemMessage(channelID, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Author:    "System",
		Text:      text,
		Timestamp: time.Now(),
		System:    true,
	}
}
