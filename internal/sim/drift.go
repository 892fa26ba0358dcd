package sim

import (
	"time"

	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

// DriftEngine applies ambient emotional change: slow mood wandering plus
// steady energy and engagement decay. It also expires stale one-on-one
// conversations so they stop influencing presence and selection.
type DriftEngine struct {
	roster *persona.Roster
	tuning config.Tuning
	rng    *Rand
}

// NewDriftEngine creates the ambient emotional drift driver.
func NewDriftEngine(roster *persona.Roster, tuning config.Tuning, rng *Rand) *DriftEngine {
	return &DriftEngine{roster: roster, tuning: tuning, rng: rng}
}

// conversationTTL is how long an exchange counts as ongoing after its
// last confirmed reply.
const conversationTTL = 30 * time.Second

// Tick applies one drift step to every non-admin participant.
func (e *DriftEngine) Tick(now time.Time) {
	e.roster.UpdateAll(func(a *persona.Agent) {
		if a.IsAdmin() {
			return
		}

		if now.Sub(a.LastMoodShift) > e.tuning.MoodCooldown && e.rng.Chance(e.tuning.MoodShiftChance) {
			a.Mood = persona.DriftMoods[e.rng.Intn(len(persona.DriftMoods))]
			a.LastMoodShift = now
		}

		a.Energy = clamp(a.Energy-e.tuning.EnergyDecay, e.tuning.EnergyFloor, 1)
		a.Engagement = clamp(a.Engagement-e.tuning.EngagementDecay, 0, 1)

		if a.Conversation != nil && now.Sub(a.Conversation.StartedAt) > conversationTTL {
			a.Conversation = nil
		}
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
