package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nidhogg/terrarium/internal/persona"
)

// Settings is the operator-facing tuning payload. Absent fields are left
// untouched; the simulation reads the live values every tick, so changes
// take effect immediately.
type Settings struct {
	Personality         *string  `json:"personality,omitempty"`
	Mood                *string  `json:"mood,omitempty"`
	Style               *string  `json:"communication_style,omitempty"`
	ActivityLevel       *float64 `json:"activity_level,omitempty"`
	MessageDelay        *float64 `json:"message_delay,omitempty"`
	ResponseProbability *float64 `json:"response_probability,omitempty"`
	MemoryRetention     *float64 `json:"memory_retention,omitempty"`
	TopicInterests      *string  `json:"topic_interests,omitempty"`
	ConflictTriggers    *string  `json:"conflict_triggers,omitempty"`
	RuleBreaker         *bool    `json:"rule_breaker,omitempty"`
	ConflictProne       *bool    `json:"conflict_prone,omitempty"`
	LearningEnabled     *bool    `json:"learning_enabled,omitempty"`
	EmojiUser           *bool    `json:"emoji_user,omitempty"`
}

func (s Settings) apply(a *persona.Agent) {
	if s.Personality != nil {
		a.Personality = *s.Personality
	}
	if s.Mood != nil {
		a.Mood = *s.Mood
	}
	if s.Style != nil {
		a.Style = *s.Style
	}
	if s.ActivityLevel != nil {
		a.ActivityLevel = clamp01(*s.ActivityLevel)
	}
	if s.MessageDelay != nil && *s.MessageDelay >= 0 {
		a.MessageDelay = *s.MessageDelay
	}
	if s.ResponseProbability != nil {
		a.ResponseProbability = clamp01(*s.ResponseProbability)
	}
	if s.MemoryRetention != nil {
		a.MemoryRetention = clamp01(*s.MemoryRetention)
	}
	if s.TopicInterests != nil {
		a.Interests = parseInterests(*s.TopicInterests)
	}
	if s.ConflictTriggers != nil {
		a.ConflictTriggers = splitList(*s.ConflictTriggers)
	}
	if s.RuleBreaker != nil {
		a.RuleBreaker = *s.RuleBreaker
	}
	if s.ConflictProne != nil {
		a.ConflictProne = *s.ConflictProne
	}
	if s.LearningEnabled != nil {
		a.LearningEnabled = *s.LearningEnabled
	}
	if s.EmojiUser != nil {
		a.EmojiUser = *s.EmojiUser
	}
}

// parseInterests rebuilds the interest list from a comma-separated string,
// giving every named topic full weight.
func parseInterests(raw string) []persona.TopicInterest {
	var interests []persona.TopicInterest
	for _, name := range splitList(raw) {
		interests = append(interests, persona.TopicInterest{Name: name, Interest: 1.0})
	}
	return interests
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var s Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	a, ok := h.roster.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "participant not found"})
		return
	}
	if a.IsAdmin() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "admin settings are fixed"})
		return
	}

	h.roster.Update(id, func(p *persona.Agent) { s.apply(p) })
	updated, _ := h.roster.Get(id)
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) updateAllSettings(w http.ResponseWriter, r *http.Request) {
	var s Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	count := 0
	h.roster.UpdateAll(func(p *persona.Agent) {
		if p.IsAdmin() {
			return
		}
		s.apply(p)
		count++
	})
	writeJSON(w, http.StatusOK, map[string]int{"updated": count})
}
