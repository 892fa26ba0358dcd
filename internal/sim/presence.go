package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

// PresenceEngine drives the online/active/afk/offline lifecycle of every
// participant. The admin account never transitions.
type PresenceEngine struct {
	roster *persona.Roster
	store  *chat.Store
	tuning config.Tuning
	rng    *Rand
	logger *zap.Logger
}

// NewPresenceEngine creates the presence lifecycle driver.
func NewPresenceEngine(roster *persona.Roster, store *chat.Store, tuning config.Tuning, rng *Rand, logger *zap.Logger) *PresenceEngine {
	return &PresenceEngine{roster: roster, store: store, tuning: tuning, rng: rng, logger: logger}
}

// Tick advances every non-admin participant one presence step.
func (e *PresenceEngine) Tick(now time.Time) {
	var joins []string

	e.roster.UpdateAll(func(a *persona.Agent) {
		if a.IsAdmin() || a.Banned {
			return
		}
		idle := now.Sub(a.LastSeen)
		engaged := a.Conversation != nil || a.Engagement > 0.7

		switch a.Presence {
		case persona.PresenceOffline:
			if e.rng.Chance(a.ActivityLevel * e.tuning.OnlineChanceFactor) {
				a.Presence = persona.PresenceOnline
				a.LastSeen = now
				if e.rng.Chance(e.tuning.JoinMessageChance) {
					joins = append(joins, a.Name)
				}
			}
		case persona.PresenceOnline:
			if engaged {
				a.Presence = persona.PresenceActive
			} else if idle > e.tuning.AFKIdle && e.rng.Chance(e.tuning.AFKChance) {
				a.Presence = persona.PresenceAFK
			} else if a.Ignored && e.rng.Chance(e.tuning.IgnoredOffline) {
				a.Presence = persona.PresenceOffline
			}
		case persona.PresenceActive:
			if !engaged && idle > e.tuning.ActiveIdle {
				a.Presence = persona.PresenceOnline
			}
		case persona.PresenceAFK:
			if e.rng.Chance(e.tuning.AFKRecovery) {
				if e.rng.Chance(e.tuning.AFKRecoveryOnline) {
					a.Presence = persona.PresenceOnline
				} else {
					a.Presence = persona.PresenceOffline
				}
			}
		}
	})

	// Join notices land in the focused channel only.
	if active := e.store.ActiveChannel(); active != "" {
		for _, name := range joins {
			msg := chat.NewSystemMessage(active, name+" joined the chat")
			if err := e.store.Append(msg); err != nil {
				e.logger.Warn("join notice dropped", zap.Error(err))
			}
		}
	}
}
