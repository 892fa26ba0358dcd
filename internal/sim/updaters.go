package sim

import (
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

// Memorizer persists notable moments for later recall. Implementations must
// not block; a nil Memorizer disables long-term memory.
type Memorizer interface {
	Memorize(personaID, text string)
}

// Updater applies the state consequences of speaking or being spoken to.
type Updater struct {
	roster   *persona.Roster
	tuning   config.Tuning
	rng      *Rand
	memorize Memorizer
}

// NewUpdater creates the post-message state updater. memorize may be nil.
func NewUpdater(roster *persona.Roster, tuning config.Tuning, rng *Rand, memorize Memorizer) *Updater {
	return &Updater{roster: roster, tuning: tuning, rng: rng, memorize: memorize}
}

// RecordOwnMessage journals a message the participant just sent and files
// an important event when the message looks memorable: a question, a long
// thought, or a reply to being mentioned.
func (u *Updater) RecordOwnMessage(id, text string, recent []chat.Message, now time.Time) {
	memorable := false
	u.roster.Update(id, func(a *persona.Agent) {
		a.Journal = appendCapped(a.Journal, fmt.Sprintf("%s: %s", a.Name, text), u.tuning.JournalCap)

		mentioned := false
		for _, m := range recent {
			if strings.Contains(m.Text, "@"+a.Name) {
				mentioned = true
				break
			}
		}
		if strings.Contains(text, "?") || len(text) > 50 || mentioned {
			excerpt := text
			if len(excerpt) > 50 {
				excerpt = excerpt[:50]
			}
			event := fmt.Sprintf("%s: %s", now.Format("15:04:05"), excerpt)
			a.Events = appendCapped(a.Events, event, u.tuning.EventCap)
			memorable = true
		}
	})
	if memorable && u.memorize != nil {
		u.memorize.Memorize(id, text)
	}
}

// ApplyEmotions adjusts energy, engagement, and mood after speaking.
func (u *Updater) ApplyEmotions(id, text string, now time.Time) {
	excite := strings.Contains(text, "!") && u.rng.Chance(0.3)
	curious := !excite && strings.Contains(text, "?") && u.rng.Chance(0.2)

	u.roster.Update(id, func(a *persona.Agent) {
		a.Energy = clamp(a.Energy-0.15, 0.2, 1)
		a.Engagement = clamp(a.Engagement+0.25, 0, 1)
		if excite {
			a.Mood = "excited"
			a.LastMoodShift = now
		} else if curious {
			a.Mood = "curious"
			a.LastMoodShift = now
		}
	})
}

// DriftRelationships nudges affinity toward everyone who spoke in the
// recent window, a small random walk clamped to [-1, 1].
func (u *Updater) DriftRelationships(id string, recent []chat.Message) {
	deltas := make(map[string]float64)
	for _, m := range recent {
		if m.System || m.AuthorID == "" || m.AuthorID == id {
			continue
		}
		if _, seen := deltas[m.AuthorID]; !seen {
			deltas[m.AuthorID] = (u.rng.Float64() - 0.5) * 0.03
		}
	}
	if len(deltas) == 0 {
		return
	}
	u.roster.Update(id, func(a *persona.Agent) {
		for author, delta := range deltas {
			rel, ok := a.Relationships[author]
			if !ok {
				continue
			}
			rel.Affinity = clamp(rel.Affinity+delta, -1, 1)
		}
	})
}

// RecordExchange applies the consequences of a direct reply: the pair's
// relationship warms slightly, both lines land in the reactive journal,
// and a fresh conversation window opens.
func (u *Updater) RecordExchange(id string, target chat.Message, reply string, now time.Time) {
	u.roster.Update(id, func(a *persona.Agent) {
		if target.AuthorID != "" {
			rel := a.RelationshipWith(target.AuthorID)
			rel.Interactions++
			rel.LastInteraction = &now
			rel.Affinity = clamp(rel.Affinity+u.rng.Float64()*0.05, -1, 1)
		}

		a.Journal = appendCapped(a.Journal,
			fmt.Sprintf("%s: %s", target.Author, target.Text), u.tuning.ReactiveJournalCap)
		a.Journal = appendCapped(a.Journal,
			fmt.Sprintf("%s: %s", a.Name, reply), u.tuning.ReactiveJournalCap)

		a.Engagement = clamp(a.Engagement+0.2, 0, 1)
		a.Energy = clamp(a.Energy-0.1, 0.1, 1)
		a.LastSeen = now
		a.Conversation = &persona.Conversation{PartnerID: target.AuthorID, StartedAt: now}
	})
}

// TrackUserMessage reacts the population to a message typed by the human
// operator: mentioned participants perk up and warm toward the sender.
func (u *Updater) TrackUserMessage(authorID, authorName, text string, now time.Time) {
	u.roster.UpdateAll(func(a *persona.Agent) {
		if a.IsAdmin() || a.Presence == persona.PresenceOffline {
			return
		}
		if !strings.Contains(text, "@"+a.Name) {
			return
		}
		a.Journal = appendCapped(a.Journal, fmt.Sprintf("%s: %s", authorName, text), u.tuning.JournalCap)
		rel := a.RelationshipWith(authorID)
		rel.Interactions++
		rel.LastInteraction = &now
		rel.Affinity = clamp(rel.Affinity+0.05, -1, 1)
		a.Engagement = clamp(a.Engagement+0.4, 0, 1)
		a.Energy = clamp(a.Energy+0.2, 0, 1)
	})
}

func appendCapped(list []string, entry string, max int) []string {
	list = append(list, entry)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}
