package persona

import (
	"math/rand"
	"time"
)

// Presence represents a participant's availability in the chat.
type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceActive  Presence = "active"
	PresenceAFK     Presence = "afk"
	PresenceOffline Presence = "offline"
)

// Role distinguishes the moderator account from regular members.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// Personalities available to generated participants.
var Personalities = []string{
	"Gamer", "Tech Enthusiast", "Meme Lord", "Casual Chatter",
	"Helpful Senior Member", "Artist", "Musician", "Programmer",
	"Shitposter", "Newbie", "Know-it-all", "Troll", "Drama Queen",
}

// Moods a participant can start in. Drift only wanders through a
// calmer subset, see DriftMoods.
var Moods = []string{
	"happy", "neutral", "angry", "sad", "excited",
	"bored", "annoyed", "friendly", "hostile",
}

// DriftMoods are the moods ambient drift can shift into.
var DriftMoods = []string{"happy", "neutral", "bored", "excited", "friendly"}

// Styles a participant can communicate in.
var Styles = []string{
	"casual", "formal", "sarcastic", "friendly",
	"aggressive", "passive", "humorous", "serious",
}

// topicsByPersonality seeds each personality's interest list.
var topicsByPersonality = map[string][]string{
	"Gamer":           {"gaming", "esports", "new releases", "speedruns", "mods"},
	"Tech Enthusiast": {"technology", "programming", "AI", "gadgets", "coding"},
	"Meme Lord":       {"memes", "jokes", "viral content", "trends", "funny videos"},
	"Casual Chatter":  {"weather", "life", "random thoughts", "daily stuff"},
	"Artist":          {"art", "drawing", "design", "creativity", "animation"},
	"Musician":        {"music", "songs", "instruments", "concerts", "bands"},
	"Programmer":      {"code", "algorithms", "languages", "debugging", "projects"},
}

// TopicInterest is a named topic with an interest weight in [0.5, 1.0].
type TopicInterest struct {
	Name     string  `json:"name"`
	Interest float64 `json:"interest"`
}

// Relationship holds one participant's directed view of another.
type Relationship struct {
	Affinity        float64    `json:"affinity"` // -1..1
	Interactions    int        `json:"interactions"`
	LastInteraction *time.Time `json:"last_interaction,omitempty"`
}

// Conversation marks an ongoing exchange with a specific partner.
type Conversation struct {
	PartnerID string
	StartedAt time.Time
}

// Agent is one simulated participant: the fixed identity plus the mutable
// behavioral state. All fields are guarded by the owning Roster's lock;
// callers outside the roster work with snapshots.
type Agent struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Role          Role    `json:"role"`
	Personality   string  `json:"personality"`
	Style         string  `json:"communication_style"`
	RuleBreaker   bool    `json:"rule_breaker"`
	ConflictProne bool    `json:"conflict_prone"`
	ActivityLevel float64 `json:"activity_level"` // 0..1, how often they speak
	ResponseSpeed float64 `json:"response_speed"` // 0.5..1.0 delay multiplier

	// Operator-tunable behavior knobs, adjustable at runtime through the
	// settings API. Zero values mean "unset" and fall back to neutral.
	MessageDelay        float64  `json:"message_delay"`        // extra delay multiplier, 1.0 = neutral
	ResponseProbability float64  `json:"response_probability"` // roulette bias, 0.5 = neutral
	MemoryRetention     float64  `json:"memory_retention"`
	ConflictTriggers    []string `json:"conflict_triggers,omitempty"`
	LearningEnabled     bool     `json:"learning_enabled"`
	EmojiUser           bool     `json:"emoji_user"`

	// Mutable behavioral state.
	Mood          string          `json:"mood"`
	Energy        float64         `json:"energy"`     // 0..1
	Engagement    float64         `json:"engagement"` // 0..1
	Presence      Presence        `json:"presence"`
	LastSeen      time.Time       `json:"last_seen"`
	LastMoodShift time.Time       `json:"-"`
	Typing        bool            `json:"typing"`
	Ignored       bool            `json:"-"` // flagged when repeatedly unanswered
	Interests     []TopicInterest `json:"interests"`

	// Relationships keyed by the other participant's ID.
	Relationships map[string]*Relationship `json:"-"`

	// Ongoing one-on-one exchange, if any.
	Conversation *Conversation `json:"-"`

	// Journal is the rolling log of messages this participant has seen,
	// Events the short list of moments worth remembering.
	Journal []string `json:"-"`
	Events  []string `json:"-"`

	// Moderation state.
	Warnings   int        `json:"warnings"`
	MutedUntil *time.Time `json:"muted_until,omitempty"`
	Banned     bool       `json:"banned"`
}

// IsAdmin reports whether the agent is the moderator account.
func (a *Agent) IsAdmin() bool { return a.Role == RoleAdmin }

// Muted reports whether the agent is muted as of now.
func (a *Agent) Muted(now time.Time) bool {
	return a.MutedUntil != nil && now.Before(*a.MutedUntil)
}

// CanSpeak reports whether the agent is eligible to produce messages.
func (a *Agent) CanSpeak(now time.Time) bool {
	return !a.Banned && !a.Muted(now) &&
		a.Presence != PresenceOffline && a.Presence != PresenceAFK
}

// RelationshipWith returns the directed relationship toward otherID,
// creating a neutral one on first contact.
func (a *Agent) RelationshipWith(otherID string) *Relationship {
	if a.Relationships == nil {
		a.Relationships = make(map[string]*Relationship)
	}
	rel, ok := a.Relationships[otherID]
	if !ok {
		rel = &Relationship{}
		a.Relationships[otherID] = rel
	}
	return rel
}

// generateInterests builds the topic interest list for a personality.
func generateInterests(personality string, rng *rand.Rand) []TopicInterest {
	base, ok := topicsByPersonality[personality]
	if !ok {
		base = []string{"general", "chat", "discussion"}
	}
	interests := make([]TopicInterest, len(base))
	for i, topic := range base {
		interests[i] = TopicInterest{Name: topic, Interest: rng.Float64()*0.5 + 0.5}
	}
	return interests
}
