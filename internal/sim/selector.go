package sim

import (
	"strings"
	"time"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

// Selector picks which participant answers, in four strict tiers:
// direct mention, topic interest, ongoing conversation, then a weighted
// roulette over everyone left.
type Selector struct {
	roster *persona.Roster
	tuning config.Tuning
	rng    *Rand
}

// NewSelector creates a responder selector.
func NewSelector(roster *persona.Roster, tuning config.Tuning, rng *Rand) *Selector {
	return &Selector{roster: roster, tuning: tuning, rng: rng}
}

// Select returns a snapshot of the chosen responder, or false when nobody
// qualifies. A mention hit also forces the target active and fully engaged.
func (s *Selector) Select(recent []chat.Message, now time.Time) (persona.Agent, bool) {
	var candidates []persona.Agent
	for _, a := range s.roster.Eligible(now) {
		if a.Typing {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return persona.Agent{}, false
	}

	var last *chat.Message
	if len(recent) > 0 {
		last = &recent[len(recent)-1]
	}

	// Tier 1: direct mentions always win.
	if last != nil {
		for _, a := range candidates {
			if strings.Contains(last.Text, "@"+a.Name) {
				s.roster.Update(a.ID, func(ag *persona.Agent) {
					ag.Presence = persona.PresenceActive
					ag.Engagement = 1.0
				})
				a.Presence = persona.PresenceActive
				a.Engagement = 1.0
				return a, true
			}
		}
	}

	// Tier 2: topic interest match.
	var interested []persona.Agent
	for _, a := range candidates {
		if topicMatch(a, recent) {
			interested = append(interested, a)
		}
	}
	if len(interested) > 0 && s.rng.Chance(s.tuning.TopicMatchChance) {
		return interested[s.rng.Intn(len(interested))], true
	}

	// Tier 3: participants mid-conversation.
	var inConversation []persona.Agent
	for _, a := range candidates {
		if a.Conversation != nil && now.Sub(a.Conversation.StartedAt) < s.tuning.ConversationMaxAge {
			inConversation = append(inConversation, a)
		}
	}
	if len(inConversation) > 0 && s.rng.Chance(s.tuning.ConversationChance) {
		return inConversation[s.rng.Intn(len(inConversation))], true
	}

	// Tier 4: weighted roulette.
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, a := range candidates {
		weights[i] = SelectionWeight(a, last, recent)
		total += weights[i]
	}
	if total == 0 {
		return persona.Agent{}, false
	}
	draw := s.rng.Float64() * total
	for i, w := range weights {
		draw -= w
		if draw <= 0 {
			return candidates[i], true
		}
	}
	return candidates[0], true
}

// SelectionWeight scores a candidate for the roulette tier. Chattier,
// engaged, active participants dominate; anyone who already filled the
// window or is being ignored fades out.
func SelectionWeight(a persona.Agent, last *chat.Message, recent []chat.Message) float64 {
	weight := a.ActivityLevel * 10
	weight *= a.Engagement*2 + a.Energy

	switch a.Presence {
	case persona.PresenceActive:
		weight *= 4
	case persona.PresenceAFK:
		weight *= 0.05
	}

	if last != nil && !last.System && last.AuthorID != "" {
		if rel, ok := a.Relationships[last.AuthorID]; ok {
			weight *= 1 + rel.Affinity
		}
	}

	own := 0
	for _, m := range recent {
		if m.AuthorID == a.ID {
			own++
		}
	}
	if own > 2 {
		weight *= 0.2
	}

	if a.Ignored {
		weight *= 0.15
	}

	if a.ResponseProbability > 0 {
		weight *= 2 * a.ResponseProbability
	}

	if weight < 0 {
		return 0
	}
	return weight
}

// topicMatch reports whether any strongly held interest appears in the
// recent window.
func topicMatch(a persona.Agent, recent []chat.Message) bool {
	for _, t := range a.Interests {
		if t.Interest <= 0.6 {
			continue
		}
		needle := strings.ToLower(t.Name)
		for _, m := range recent {
			if strings.Contains(strings.ToLower(m.Text), needle) {
				return true
			}
		}
	}
	return false
}
