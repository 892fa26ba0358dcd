package sim

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// Recaller surfaces remembered moments relevant to the current prompt.
// The vector memory implements this; a nil Recaller disables recall.
type Recaller interface {
	Recall(ctx context.Context, personaID, query string, limit int) ([]string, error)
}

// Generator produces in-character chat messages.
type Generator struct {
	router   *provider.Router
	model    string
	language string
	recall   Recaller
	rng      *Rand
	logger   *zap.Logger
}

// NewGenerator creates a message generator. recall may be nil.
func NewGenerator(router *provider.Router, model, language string, recall Recaller, rng *Rand, logger *zap.Logger) *Generator {
	return &Generator{router: router, model: model, language: language, recall: recall, rng: rng, logger: logger}
}

// Generate writes one in-character message for the channel conversation.
func (g *Generator) Generate(ctx context.Context, a persona.Agent, channelName string, recent []chat.Message, reason string) (string, error) {
	var conversation []string
	for _, m := range recent {
		if m.System {
			continue
		}
		conversation = append(conversation, fmt.Sprintf("%s: %s", m.Author, m.Text))
	}

	journal := a.Journal
	if len(journal) > 15 {
		journal = journal[len(journal)-15:]
	}

	events := a.Events
	if len(events) > 3 {
		events = events[len(events)-3:]
	}
	remembered := strings.Join(events, ". ")

	// Vector recall augments the literal event tail when available.
	if g.recall != nil && len(conversation) > 0 {
		query := conversation[len(conversation)-1]
		if hits, err := g.recall.Recall(ctx, a.ID, query, 3); err == nil && len(hits) > 0 {
			if remembered != "" {
				remembered += ". "
			}
			remembered += strings.Join(hits, ". ")
		} else if err != nil {
			g.logger.Debug("memory recall unavailable", zap.Error(err))
		}
	}

	var lastSpeaker *chat.Message
	for i := len(recent) - 1; i >= 0; i-- {
		if !recent[i].System {
			lastSpeaker = &recent[i]
			break
		}
	}
	relationshipContext := ""
	if lastSpeaker != nil {
		if rel, ok := a.Relationships[lastSpeaker.AuthorID]; ok {
			tone := "neutral"
			if rel.Affinity > 0.5 {
				tone = "friendly"
			} else if rel.Affinity < -0.5 {
				tone = "hostile"
			}
			relationshipContext = fmt.Sprintf("Relationship with %s: %s (%d past interactions)",
				lastSpeaker.Author, tone, rel.Interactions)
		}
	}

	var interests []string
	for _, t := range a.Interests {
		if t.Interest > 0.6 {
			interests = append(interests, t.Name)
		}
	}

	prompt := g.buildPrompt(a, channelName, reason, conversation, journal, remembered, relationshipContext, interests)

	resp, err := g.router.Route(ctx, a.ID, &provider.ChatRequest{
		Model:       g.model,
		Temperature: 0.95,
		Messages: []provider.Message{
			{Role: "system", Content: "You are a real human. Every message is unique. Be unpredictable, authentic, and natural. React to context, relationships, and emotions. No patterns, no templates."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate message: %w", err)
	}

	return g.postProcess(a, strings.TrimSpace(resp.Content)), nil
}

func (g *Generator) buildPrompt(a persona.Agent, channelName, reason string, conversation, journal []string, remembered, relationshipContext string, interests []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a REAL human being.\n\n", a.Name)
	fmt.Fprintf(&b, "**YOUR IDENTITY:**\n- Personality: %s\n- Style: %s\n", a.Personality, a.Style)
	if len(interests) > 0 {
		fmt.Fprintf(&b, "Interests: %s\n", strings.Join(interests, ", "))
	}
	fmt.Fprintf(&b, "\n**CURRENT STATE:**\nMood: %s\nEnergy: %d%%\nEngagement: %d%%\n",
		a.Mood, int(a.Energy*100), int(a.Engagement*100))
	if relationshipContext != "" {
		fmt.Fprintf(&b, "%s\n", relationshipContext)
	}
	fmt.Fprintf(&b, "\n**SITUATION:**\n- Channel: #%s\n- Reason you're responding: %s\n", channelName, reason)
	if remembered != "" {
		fmt.Fprintf(&b, "- What you remember: %s\n", remembered)
	}
	conversationLog := "(You are starting fresh)"
	if len(conversation) > 0 {
		conversationLog = strings.Join(conversation, "\n")
	}
	fmt.Fprintf(&b, "\n**CURRENT CONVERSATION:**\n%s\n", conversationLog)
	if len(journal) > 0 {
		fmt.Fprintf(&b, "\n**YOUR RECENT MESSAGES:**\n%s\n", strings.Join(journal, "\n"))
	}
	fmt.Fprintf(&b, `
**YOUR TASK:**
Write ONE authentic message as yourself in %s. Be REAL:

1. **Personality First**: Let your %s nature show
2. **Stay Natural**: Match the conversation's energy and topic
3. **Vary Length**:
   - 70%%: Ultra short (1-8 words) - "lol same", "wait what", "fr tho"
   - 25%%: Medium (9-15 words)
   - 5%%: Longer (16-25 words)
4. **Be Human**: typos ok, slang ok, incomplete sentences ok
5. **React Authentically**: Based on your mood and relationships
6. **Stay Relevant**: To #%s and current topic
`, g.language, a.Personality, channelName)
	if a.RuleBreaker {
		b.WriteString("\n(You sometimes break rules - caps, spam emojis, etc)")
	}
	if a.EmojiUser {
		b.WriteString("\n(You like sprinkling emojis into your messages)")
	}
	if a.ConflictProne {
		b.WriteString("\n(You enjoy debates and might disagree)")
	}
	fmt.Fprintf(&b, "\n\nWrite ONLY the message in %s. No explanation, no quotes:", g.language)
	return b.String()
}

// postProcess roughens the text up: rule breakers occasionally shout or
// pile on exclamation marks, and anyone can fat-finger a word.
func (g *Generator) postProcess(a persona.Agent, message string) string {
	if a.RuleBreaker && g.rng.Chance(0.25) {
		if g.rng.Chance(0.3) {
			message = strings.ToUpper(message)
		} else if g.rng.Chance(0.3) {
			message += strings.Repeat("!", g.rng.Intn(4)+1)
		}
	}

	if g.rng.Chance(0.1) {
		words := strings.Split(message, " ")
		if len(words) > 2 {
			i := g.rng.Intn(len(words))
			if word := words[i]; len(word) > 3 {
				j := g.rng.Intn(len(word))
				words[i] = word[:j] + word[j+1:]
				message = strings.Join(words, " ")
			}
		}
	}
	return message
}

// GenerateReaction produces a brief reply to a single message, used by the
// conversation flow loop. Prompting is lighter than the full generator.
func (g *Generator) GenerateReaction(ctx context.Context, a persona.Agent, target chat.Message) (string, error) {
	affinityContext := "You're neutral about this person"
	if rel, ok := a.Relationships[target.AuthorID]; ok {
		if rel.Affinity > 0.5 {
			affinityContext = "You like this person"
		} else if rel.Affinity < -0.5 {
			affinityContext = "You don't like this person"
		}
	}

	journal := a.Journal
	if len(journal) > 10 {
		journal = journal[len(journal)-10:]
	}
	recentContext := ""
	if len(journal) > 0 {
		recentContext = fmt.Sprintf("Recent context:\n%s\n", strings.Join(journal, "\n"))
	}

	prompt := fmt.Sprintf(`You are %s (%s, mood: %s).
%s just said: "%s"
%s.
Your energy: %d%%

%s
Respond naturally. Consider:
- Your relationship with them
- Your current mood and energy
- Whether you agree/disagree
- If you want to ask a question or share opinion

Write ONE realistic response (1-20 words):`,
		a.Name, a.Personality, a.Mood,
		target.Author, target.Text,
		affinityContext, int(a.Energy*100), recentContext)

	resp, err := g.router.Route(ctx, a.ID, &provider.ChatRequest{
		Model:       g.model,
		Temperature: 0.85,
		Messages: []provider.Message{
			{Role: "system", Content: "You are human. Respond authentically based on your relationship and mood."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate reaction: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// GenerateOpener produces a conversation starter for a quiet channel.
func (g *Generator) GenerateOpener(ctx context.Context, a persona.Agent) (string, error) {
	var favorites []string
	for _, t := range a.Interests {
		if t.Interest > 0.7 {
			favorites = append(favorites, t.Name)
		}
	}
	interestLine := ""
	if len(favorites) > 0 {
		interestLine = fmt.Sprintf("Your interests: %s\n", strings.Join(favorites, ", "))
	}

	prompt := fmt.Sprintf(`You are %s (%s, %s).
The chat has been quiet. You want to start a conversation.
%sStart a conversation naturally:
- Ask a question
- Share a random thought
- Mention something you're doing
- React to something from earlier

Be brief (1-12 words), casual, and natural:`, a.Name, a.Personality, a.Mood, interestLine)

	resp, err := g.router.Route(ctx, a.ID, &provider.ChatRequest{
		Model:       g.model,
		Temperature: 0.9,
		Messages: []provider.Message{
			{Role: "system", Content: "You are human starting a casual conversation. Be natural and brief."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate opener: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}
