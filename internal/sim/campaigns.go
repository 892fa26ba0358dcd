package sim

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// reachable returns non-admin participants who are not muted, banned, or
// offline, in random order.
func (s *Simulator) reachable(now time.Time) []persona.Agent {
	var out []persona.Agent
	for _, a := range s.roster.All() {
		if a.IsAdmin() || a.Banned || a.Muted(now) || a.Presence == persona.PresenceOffline {
			continue
		}
		out = append(out, a)
	}
	perm := s.rng.Perm(len(out))
	shuffled := make([]persona.Agent, len(out))
	for i, j := range perm {
		shuffled[i] = out[j]
	}
	return shuffled
}

// TriggerWidespreadReaction has a random slice of the population react to
// an admin announcement, staggered so replies trickle in naturally.
func (s *Simulator) TriggerWidespreadReaction(announcement, channelID string) {
	now := time.Now()
	pool := s.reachable(now)
	count := int(float64(len(pool)) * (s.rng.Float64()*0.4 + 0.3))
	reacting := pool[:count]

	for i, a := range reacting {
		a := a
		delay := Delay(s.tuning, a, nil, s.rng) + time.Duration(i)*1500*time.Millisecond
		s.spawn(func() {
			if !s.sleep(delay) {
				return
			}
			prompt := fmt.Sprintf(`You are %s (%s, %s).
Admin announced: "%s"
React authentically and briefly (1-10 words) in %s:`,
				a.Name, a.Personality, a.Mood, announcement, s.generator.language)

			resp, err := s.generator.router.Route(s.context(), a.ID, &provider.ChatRequest{
				Model:       s.generator.model,
				Temperature: 0.9,
				Messages: []provider.Message{
					{Role: "system", Content: fmt.Sprintf("You are human. React naturally to admin announcement in %s.", s.generator.language)},
					{Role: "user", Content: prompt},
				},
			})
			if err != nil {
				s.logger.Warn("announcement reaction failed",
					zap.String("persona", a.Name), zap.Error(err))
				return
			}
			text := strings.TrimSpace(resp.Content)
			if text == "" {
				return
			}

			sentAt := time.Now()
			s.roster.Update(a.ID, func(ag *persona.Agent) {
				ag.LastSeen = sentAt
				ag.Presence = persona.PresenceActive
			})
			s.updater.RecordOwnMessage(a.ID, text, nil, sentAt)

			msg := chat.NewMessage(channelID, a.ID, a.Name, text)
			if err := s.store.Append(msg); err != nil {
				s.logger.Warn("reaction dropped", zap.Error(err))
			}
		})
	}
}

// RunVote simulates a community vote: roughly 70% of reachable
// participants discuss the question for most of the duration, then each
// casts a ballot and the tally lands as a vote_result message.
func (s *Simulator) RunVote(question string, options []string, channelID string, duration time.Duration) {
	now := time.Now()
	pool := s.reachable(now)
	count := int(float64(len(pool)) * 0.7)
	if count > len(pool) {
		count = len(pool)
	}
	voters := pool[:count]

	start := chat.NewSystemMessage(channelID, fmt.Sprintf("Vote started: %q", question))
	start.Type = chat.TypeVoteStart
	start.Details = map[string]interface{}{
		"question":         question,
		"options":          options,
		"duration_seconds": duration.Seconds(),
	}
	if err := s.store.Append(start); err != nil {
		s.logger.Warn("vote start notice dropped", zap.Error(err))
	}

	for _, v := range voters {
		s.roster.Update(v.ID, func(a *persona.Agent) {
			a.Presence = persona.PresenceActive
			a.Engagement = 1.0
		})
	}

	discussionEnd := now.Add(time.Duration(float64(duration) * 0.7))
	messages := int(float64(len(voters)) * 1.5)

	for i := 0; i < messages; i++ {
		i := i
		offset := time.Duration(i)*3*time.Second + time.Duration(s.rng.Float64()*2000)*time.Millisecond
		s.spawn(func() {
			if !s.sleep(offset) || time.Now().After(discussionEnd) || len(voters) == 0 {
				return
			}
			speaker := voters[s.rng.Intn(len(voters))]
			if !s.sleep(Delay(s.tuning, speaker, nil, s.rng)) {
				return
			}

			phase := "Final thoughts"
			if i < 3 {
				phase = "Share initial opinion"
			} else if i < 6 {
				phase = "Discuss with others"
			}
			prompt := fmt.Sprintf(`You are %s (%s, %s).
Voting on: "%s"
Options: %s
Message %d/%d - %s
Be natural and brief (1-15 words) in %s:`,
				speaker.Name, speaker.Personality, speaker.Mood,
				question, strings.Join(options, ", "), i+1, messages, phase, s.generator.language)

			resp, err := s.generator.router.Route(s.context(), speaker.ID, &provider.ChatRequest{
				Model:       s.generator.model,
				Temperature: 0.9,
				Messages: []provider.Message{
					{Role: "system", Content: fmt.Sprintf("You are human in vote discussion. Be natural. Speak in %s.", s.generator.language)},
					{Role: "user", Content: prompt},
				},
			})
			if err != nil {
				s.logger.Warn("vote discussion failed", zap.Error(err))
				return
			}
			text := strings.TrimSpace(resp.Content)
			if text == "" {
				return
			}

			sentAt := time.Now()
			s.roster.Update(speaker.ID, func(a *persona.Agent) { a.LastSeen = sentAt })
			s.updater.RecordOwnMessage(speaker.ID, text, nil, sentAt)

			msg := chat.NewMessage(channelID, speaker.ID, speaker.Name, text)
			if err := s.store.Append(msg); err != nil {
				s.logger.Warn("vote message dropped", zap.Error(err))
			}
		})
	}

	s.spawn(func() {
		if !s.sleep(duration) {
			return
		}
		end := chat.NewSystemMessage(channelID, fmt.Sprintf("Voting ended: %q", question))
		if err := s.store.Append(end); err != nil {
			s.logger.Warn("vote end notice dropped", zap.Error(err))
		}

		votes := make(map[string]int)
		for _, v := range voters {
			choice := s.castBallot(v, question, options)
			votes[choice]++
		}

		total := 0
		results := make([]map[string]interface{}, 0, len(options))
		for _, opt := range options {
			results = append(results, map[string]interface{}{
				"option": opt,
				"count":  votes[opt],
			})
			total += votes[opt]
		}

		result := chat.NewSystemMessage(channelID, "Vote Results")
		result.Type = chat.TypeVoteResult
		result.Details = map[string]interface{}{
			"question":    question,
			"results":     results,
			"total_votes": total,
		}
		if err := s.store.Append(result); err != nil {
			s.logger.Warn("vote result dropped", zap.Error(err))
		}
	})
}

// castBallot asks one participant for their choice, matching the reply
// against the options and falling back to a random pick.
func (s *Simulator) castBallot(v persona.Agent, question string, options []string) string {
	numbered := make([]string, len(options))
	for i, o := range options {
		numbered[i] = fmt.Sprintf("%d. %s", i+1, o)
	}
	prompt := fmt.Sprintf(`You are %s (%s).
Based on your personality and discussion, choose ONE option.
Question: "%s"
Options: %s

Respond with ONLY the option text:`, v.Name, v.Personality, question, strings.Join(numbered, "\n"))

	resp, err := s.generator.router.Route(s.context(), v.ID, &provider.ChatRequest{
		Model: s.generator.model,
		Messages: []provider.Message{
			{Role: "system", Content: "Choose ONE option based on personality. Reply with option text only."},
			{Role: "user", Content: prompt},
		},
	})
	if err == nil {
		chosen := strings.ToLower(strings.TrimSpace(resp.Content))
		for _, o := range options {
			lo := strings.ToLower(o)
			if strings.Contains(chosen, lo) || strings.Contains(lo, chosen) {
				return o
			}
		}
	}
	return options[s.rng.Intn(len(options))]
}

// ForceReaction makes one participant visibly express an emotion in the
// focused channel.
func (s *Simulator) ForceReaction(ctx context.Context, personaID, emotion, situation string) error {
	a, ok := s.roster.Get(personaID)
	if !ok {
		return fmt.Errorf("unknown participant %s", personaID)
	}
	channelID := s.store.ActiveChannel()
	if channelID == "" {
		return fmt.Errorf("no active channel")
	}

	prompt := fmt.Sprintf(`You are %s (%s).
You suddenly feel %s.`, a.Name, a.Personality, emotion)
	if situation != "" {
		prompt += fmt.Sprintf("\nContext: %s", situation)
	}
	prompt += fmt.Sprintf("\nReact briefly and naturally (1-10 words) in %s. Show the %s emotion clearly.",
		s.generator.language, emotion)

	resp, err := s.generator.router.Route(ctx, a.ID, &provider.ChatRequest{
		Model: s.generator.model,
		Messages: []provider.Message{
			{Role: "system", Content: fmt.Sprintf("Express %s emotion naturally and briefly in %s.", emotion, s.generator.language)},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return fmt.Errorf("force reaction: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return nil
	}
	return s.store.Append(chat.NewMessage(channelID, a.ID, a.Name, text))
}

// dramaScenario describes each staged conflict type.
func dramaScenario(dramaType, name1, name2, topic string) string {
	switch dramaType {
	case "misunderstanding":
		s := fmt.Sprintf("%s misunderstands what %s said", name1, name2)
		if topic != "" {
			s += " about " + topic
		}
		return s
	case "accusation":
		s := fmt.Sprintf("%s falsely accuses %s", name1, name2)
		if topic != "" {
			s += " of " + topic
		}
		return s
	case "rivalry":
		s := fmt.Sprintf("%s and %s suddenly become competitive", name1, name2)
		if topic != "" {
			s += " about " + topic
		}
		return s
	default:
		if topic == "" {
			topic = "something trivial"
		}
		return fmt.Sprintf("%s and %s start arguing about %s", name1, name2, topic)
	}
}

// SimulateDrama stages a six-message conflict between two random
// participants in the focused channel. Needs at least two reachable
// participants.
func (s *Simulator) SimulateDrama(dramaType, topic string) error {
	now := time.Now()
	pool := s.reachable(now)
	if len(pool) < 2 {
		return fmt.Errorf("need at least 2 participants for drama simulation")
	}
	channelID := s.store.ActiveChannel()
	if channelID == "" {
		return fmt.Errorf("no active channel")
	}

	first, second := pool[0], pool[1]
	notice := chat.NewSystemMessage(channelID,
		"Drama simulation started: "+dramaScenario(dramaType, first.Name, second.Name, topic))
	if err := s.store.Append(notice); err != nil {
		return err
	}

	for i := 0; i < 6; i++ {
		i := i
		offset := time.Duration(i)*3*time.Second + time.Duration(s.rng.Float64()*2000)*time.Millisecond
		s.spawn(func() {
			if !s.sleep(offset) {
				return
			}
			current, other := first, second
			if i%2 == 1 {
				current, other = second, first
			}

			phase := "Calm down or continue"
			if i < 2 {
				phase = "Start the conflict"
			} else if i < 4 {
				phase = "Escalate"
			}
			prompt := fmt.Sprintf(`You are %s (%s, %s).
You are in a %s with %s.`, current.Name, current.Personality, current.Mood, dramaType, other.Name)
			if topic != "" {
				prompt += "\nTopic: " + topic
			}
			prompt += fmt.Sprintf("\nMessage %d/6 - %s\nWrite ONE brief, emotional message (1-15 words) in %s:",
				i+1, phase, s.generator.language)

			resp, err := s.generator.router.Route(s.context(), current.ID, &provider.ChatRequest{
				Model: s.generator.model,
				Messages: []provider.Message{
					{Role: "system", Content: fmt.Sprintf("You are involved in %s. Be emotional and realistic. Speak in %s.", dramaType, s.generator.language)},
					{Role: "user", Content: prompt},
				},
			})
			if err != nil {
				s.logger.Warn("drama message failed", zap.Error(err))
				return
			}
			text := strings.TrimSpace(resp.Content)
			if text == "" {
				return
			}
			msg := chat.NewMessage(channelID, current.ID, current.Name, text)
			if err := s.store.Append(msg); err != nil {
				s.logger.Warn("drama message dropped", zap.Error(err))
			}
		})
	}
	return nil
}
