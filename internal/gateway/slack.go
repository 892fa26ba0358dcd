package gateway

import (
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
)

// SlackMirror relays the active channel to a Slack channel, posting each
// participant's lines under their own display name.
type SlackMirror struct {
	client    *slack.Client
	channelID string
	relay     *relay
}

// NewSlackMirror creates the mirror and verifies the token with an auth
// test before starting the relay worker.
func NewSlackMirror(botToken, channelID string, active func() string, logger *zap.Logger) (*SlackMirror, error) {
	client := slack.New(botToken)
	if _, err := client.AuthTest(); err != nil {
		return nil, fmt.Errorf("slack auth: %w", err)
	}

	m := &SlackMirror{
		client:    client,
		channelID: channelID,
		relay:     newRelay("slack", active, logger),
	}
	go m.relay.run(m)

	logger.Info("slack mirror connected", zap.String("channel", channelID))
	return m, nil
}

// OnMessage implements chat.MessageListener.
func (m *SlackMirror) OnMessage(msg chat.Message) {
	m.relay.enqueue(msg)
}

func (m *SlackMirror) post(msg chat.Message) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Text, false),
		slack.MsgOptionUsername(msg.Author),
	}
	if msg.System {
		opts = []slack.MsgOption{
			slack.MsgOptionText("_"+msg.Text+"_", false),
			slack.MsgOptionUsername("System"),
			slack.MsgOptionIconEmoji(":gear:"),
		}
	}

	if _, _, err := m.client.PostMessage(m.channelID, opts...); err != nil {
		return fmt.Errorf("slack send: %w", err)
	}
	return nil
}

// Close stops the relay worker.
func (m *SlackMirror) Close() error {
	m.relay.stop()
	return nil
}
