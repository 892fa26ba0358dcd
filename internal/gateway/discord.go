package gateway

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
)

// DiscordMirror relays the active channel to a Discord channel. Discord
// bots cannot change display names per message without webhooks, so each
// line carries the speaker as a bold prefix.
type DiscordMirror struct {
	session   *discordgo.Session
	channelID string
	relay     *relay
}

// NewDiscordMirror opens a Discord session and starts the relay worker.
func NewDiscordMirror(botToken, channelID string, active func() string, logger *zap.Logger) (*DiscordMirror, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages
	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}

	m := &DiscordMirror{
		session:   session,
		channelID: channelID,
		relay:     newRelay("discord", active, logger),
	}
	go m.relay.run(m)

	logger.Info("discord mirror connected",
		zap.String("user", session.State.User.Username),
		zap.String("channel", channelID))
	return m, nil
}

// OnMessage implements chat.MessageListener.
func (m *DiscordMirror) OnMessage(msg chat.Message) {
	m.relay.enqueue(msg)
}

func (m *DiscordMirror) post(msg chat.Message) error {
	content := fmt.Sprintf("**%s:** %s", msg.Author, msg.Text)
	if msg.System {
		content = fmt.Sprintf("*%s*", msg.Text)
	}
	if _, err := m.session.ChannelMessageSend(m.channelID, content); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Close stops the relay worker and shuts down the session.
func (m *DiscordMirror) Close() error {
	m.relay.stop()
	return m.session.Close()
}
