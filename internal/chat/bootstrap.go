package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// fallbackChannels is used when channel name generation is unavailable.
var fallbackChannels = []string{"General", "Memes", "Rules", "Gaming", "Off-topic"}

// Bootstrapper generates channels and seeds them with plausible history so
// the world never starts cold.
type Bootstrapper struct {
	router   *provider.Router
	model    string
	language string
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewBootstrapper creates a channel bootstrapper. A nil router falls back
// to the stock channel names with empty history.
func NewBootstrapper(router *provider.Router, model, language string, rng *rand.Rand, logger *zap.Logger) *Bootstrapper {
	return &Bootstrapper{router: router, model: model, language: language, rng: rng, logger: logger}
}

// Bootstrap creates between min and max channels and pre-populates them
// with generated history attributed to roster members.
func (b *Bootstrapper) Bootstrap(ctx context.Context, store *Store, roster *persona.Roster, min, max int) error {
	if max < min {
		max = min
	}
	count := b.rng.Intn(max-min+1) + min

	names := b.channelNames(ctx, count)
	for _, name := range names {
		store.AddChannel(name)
	}

	if b.router != nil {
		if err := b.prePopulate(ctx, store, roster, names); err != nil {
			b.logger.Warn("history pre-population unavailable, starting with empty channels", zap.Error(err))
		}
	}
	b.logger.Info("channels bootstrapped", zap.Int("count", len(names)))
	return nil
}

func (b *Bootstrapper) channelNames(ctx context.Context, count int) []string {
	if b.router == nil {
		return fallbackChannels
	}
	resp, err := b.router.Route(ctx, "worldgen", &provider.ChatRequest{
		Model: b.model,
		Messages: []provider.Message{
			{Role: "system", Content: fmt.Sprintf(
				`Generate %d unique, single-word channel names in %s for a tech-themed online community chat. The names should be relevant to topics like general discussion, memes, rules, tech, gaming, etc. Respond with a JSON object containing a "channels" array. Each item in the array should be an object with a "name" property. Example: {"channels": [{"name": "General"}, {"name": "Memes"}]}`,
				count, b.language)},
			{Role: "user", Content: fmt.Sprintf("Give me %d channel names in %s.", count, b.language)},
		},
		JSONMode: true,
	})
	if err != nil {
		b.logger.Warn("channel generation unavailable, using stock names", zap.Error(err))
		return fallbackChannels
	}
	var parsed struct {
		Channels []struct {
			Name string `json:"name"`
		} `json:"channels"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil || len(parsed.Channels) == 0 {
		b.logger.Warn("unparseable channel response, using stock names", zap.Error(err))
		return fallbackChannels
	}
	names := make([]string, 0, len(parsed.Channels))
	for _, c := range parsed.Channels {
		if c.Name != "" {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return fallbackChannels
	}
	return names
}

// prePopulate asks the provider for historic chat logs per channel and
// writes them into the store, remapping unknown authors to real members.
func (b *Bootstrapper) prePopulate(ctx context.Context, store *Store, roster *persona.Roster, names []string) error {
	var members []persona.Agent
	for _, a := range roster.All() {
		if !a.IsAdmin() {
			members = append(members, a)
		}
	}
	if len(members) == 0 {
		return nil
	}

	var descriptions []string
	for _, m := range members {
		desc := fmt.Sprintf("%s: %s, %s mood, %s style", m.Name, m.Personality, m.Mood, m.Style)
		if m.RuleBreaker {
			desc += ", rule-breaker"
		}
		if m.ConflictProne {
			desc += ", argumentative"
		}
		descriptions = append(descriptions, desc)
	}

	var topics []string
	for _, name := range names {
		topics = append(topics, fmt.Sprintf("- %s: Stay 100%% on topic for %s", name, name))
	}

	system := fmt.Sprintf(`You generate REALISTIC historic chat logs for a new online community. Make it feel like real humans were chatting.

**CRITICAL INSTRUCTIONS:**
1. Create DIVERSE, UNIQUE messages - no patterns or repetition
2. Each person has a DISTINCT voice and personality
3. Messages must be STRICTLY relevant to the channel topic
4. Use informal tone, slang, emojis, typos, internet language
5. Vary message lengths: mostly short (1-10 words), some medium, rare long
6. Make it feel LIVED-IN and authentic

**Community Members:**
%s

**Channels & Topics:**
%s

**Language:** %s

**Output Format:**
JSON object with channel names as keys, arrays of messages as values.
Each message: {"author": "Username", "text": "message"}`,
		strings.Join(descriptions, "\n"), strings.Join(topics, "\n"), b.language)

	resp, err := b.router.Route(ctx, "worldgen", &provider.ChatRequest{
		Model:       b.model,
		Temperature: 0.9,
		Messages: []provider.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf(
				"Generate realistic, DIVERSE chat history for: %s. Make each person sound completely different. No repetitive patterns.",
				strings.Join(names, ", "))},
		},
		JSONMode: true,
	})
	if err != nil {
		return err
	}

	var history map[string][]struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &history); err != nil {
		return fmt.Errorf("parse history: %w", err)
	}

	// Case-insensitive lookup over the returned channel keys.
	lookup := make(map[string][]struct {
		Author string `json:"author"`
		Text   string `json:"text"`
	})
	for k, v := range history {
		lookup[strings.ToLower(k)] = v
	}

	for _, name := range names {
		for _, raw := range lookup[strings.ToLower(name)] {
			author, ok := roster.GetByName(raw.Author)
			if !ok || author.IsAdmin() {
				author = members[b.rng.Intn(len(members))]
			}
			msg := NewMessage(ChannelID(name), author.ID, author.Name, raw.Text)
			if err := store.Append(msg); err != nil {
				return err
			}
		}
	}
	return nil
}
