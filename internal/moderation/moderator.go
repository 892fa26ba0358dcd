package moderation

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/persona"
)

// kicked participants rejoin automatically after this long.
const rejoinAfter = 30 * time.Second

// warnLimit is the warning count that triggers an automatic ban.
const warnLimit = 3

// Simulation is the slice of the simulator moderation nudges: actions wake
// the loops so the population reacts to what just happened.
type Simulation interface {
	Start()
	TriggerWidespreadReaction(announcement, channelID string)
}

// ActionRecord is one entry in the moderation audit log.
type ActionRecord struct {
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	ChannelID string    `json:"channel_id"`
}

// Moderator applies administrative actions to the population. Every action
// posts a system message to the active channel, lands in the audit log, and
// nudges the simulation so the community reacts.
type Moderator struct {
	roster *persona.Roster
	store  *chat.Store
	sim    Simulation
	logger *zap.Logger

	mu      sync.Mutex
	actions []ActionRecord
}

// NewModerator creates a moderator over the shared roster and chat store.
func NewModerator(roster *persona.Roster, store *chat.Store, sim Simulation, logger *zap.Logger) *Moderator {
	return &Moderator{roster: roster, store: store, sim: sim, logger: logger}
}

// target resolves a participant by name, rejecting the admin and unknowns.
func (m *Moderator) target(name string) (persona.Agent, error) {
	a, ok := m.roster.GetByName(name)
	if !ok {
		return persona.Agent{}, fmt.Errorf("unknown participant %s", name)
	}
	if a.IsAdmin() {
		return persona.Agent{}, fmt.Errorf("%s is the admin and cannot be targeted", name)
	}
	return a, nil
}

func (m *Moderator) postSystem(text string) {
	msg := chat.NewSystemMessage(m.store.ActiveChannel(), text)
	if err := m.store.Append(msg); err != nil {
		m.logger.Warn("system message not posted", zap.Error(err))
	}
}

func (m *Moderator) record(action, target, details string) {
	m.mu.Lock()
	m.actions = append(m.actions, ActionRecord{
		Action:    action,
		Target:    target,
		Details:   details,
		Timestamp: time.Now(),
		ChannelID: m.store.ActiveChannel(),
	})
	m.mu.Unlock()

	m.logger.Info("moderation action",
		zap.String("action", action), zap.String("target", target))
	m.sim.Start()
}

// Actions returns a copy of the audit log, oldest first.
func (m *Moderator) Actions() []ActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ActionRecord(nil), m.actions...)
}

// Warn issues a warning. The third warning bans the participant in the same
// call.
func (m *Moderator) Warn(name string) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}

	warnings := 0
	m.roster.Update(a.ID, func(p *persona.Agent) {
		p.Warnings++
		warnings = p.Warnings
	})

	m.postSystem(fmt.Sprintf("%s has been warned. (%d/%d warnings)", a.Name, warnings, warnLimit))
	m.record("warn", a.Name, fmt.Sprintf("Count: %d", warnings))

	if warnings >= warnLimit {
		return m.Ban(name, "exceeding warning limit")
	}
	return nil
}

// Mute silences a participant for the given duration. Unmute is automatic
// and silent.
func (m *Moderator) Mute(name string, duration time.Duration) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}
	if a.Muted(time.Now()) {
		return fmt.Errorf("%s is already muted", a.Name)
	}

	until := time.Now().Add(duration)
	m.roster.Update(a.ID, func(p *persona.Agent) {
		p.MutedUntil = &until
	})
	time.AfterFunc(duration, func() {
		m.roster.Update(a.ID, func(p *persona.Agent) {
			p.MutedUntil = nil
		})
	})

	m.postSystem(fmt.Sprintf("%s has been muted for %s.", a.Name, durationText(duration)))
	m.record("mute", a.Name, "Duration: "+durationText(duration))
	return nil
}

// Ban removes a participant from the community permanently.
func (m *Moderator) Ban(name, reason string) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}

	m.roster.Update(a.ID, func(p *persona.Agent) { p.Banned = true })
	m.roster.Remove(a.ID)

	m.postSystem(fmt.Sprintf("%s has been banned. Reason: %s.", a.Name, reason))
	m.record("ban", a.Name, "Reason: "+reason)
	return nil
}

// Kick removes a participant temporarily; they rejoin on their own after
// thirty seconds.
func (m *Moderator) Kick(name string) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}

	m.roster.Remove(a.ID)
	m.postSystem(fmt.Sprintf("%s has been kicked from the chat.", a.Name))
	m.record("kick", a.Name, "Kicked from chat")

	rejoining := a
	time.AfterFunc(rejoinAfter, func() {
		if err := m.roster.Add(&rejoining); err != nil {
			m.logger.Warn("kicked participant could not rejoin",
				zap.String("name", rejoining.Name), zap.Error(err))
			return
		}
		m.postSystem(fmt.Sprintf("%s has rejoined the chat.", rejoining.Name))
	})
	return nil
}

// Timeout forces a participant offline for the given duration. Presence is
// restored to online with a system message when it ends.
func (m *Moderator) Timeout(name string, duration time.Duration) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}

	m.roster.Update(a.ID, func(p *persona.Agent) {
		p.Presence = persona.PresenceOffline
	})
	time.AfterFunc(duration, func() {
		restored := m.roster.Update(a.ID, func(p *persona.Agent) {
			p.Presence = persona.PresenceOnline
		})
		if restored {
			m.postSystem(fmt.Sprintf("%s timeout has ended.", a.Name))
		}
	})

	m.postSystem(fmt.Sprintf("%s has been timed out for %s.", a.Name, durationText(duration)))
	m.record("timeout", a.Name, "Duration: "+durationText(duration))
	return nil
}

// ChangeRank reassigns a participant's role.
func (m *Moderator) ChangeRank(name string, newRole persona.Role) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}

	oldRole := a.Role
	m.roster.Update(a.ID, func(p *persona.Agent) { p.Role = newRole })

	m.postSystem(fmt.Sprintf("%s's rank has been changed from %s to %s.", a.Name, oldRole, newRole))
	m.record("change-rank", a.Name, fmt.Sprintf("%s to %s", oldRole, newRole))
	return nil
}

// Rename gives a participant a new display name. Relationships are keyed by
// ID and survive untouched.
func (m *Moderator) Rename(name, newName, reason string) error {
	a, err := m.target(name)
	if err != nil {
		return err
	}
	if err := m.roster.Rename(a.ID, newName); err != nil {
		return fmt.Errorf("rename %s: %w", a.Name, err)
	}

	text := fmt.Sprintf("%s has been renamed to %s", a.Name, newName)
	if reason != "" {
		text += fmt.Sprintf(" (Reason: %s)", reason)
	}
	m.postSystem(text)
	m.record("change-nickname", fmt.Sprintf("%s to %s", a.Name, newName), reason)
	return nil
}

// ClearChannel wipes a channel's transcript.
func (m *Moderator) ClearChannel(channelID string) error {
	if err := m.store.Clear(channelID); err != nil {
		return err
	}
	m.record("clear-channel", channelID, "")
	return nil
}

// Announce posts an announcement from the admin to every channel and stirs
// a wave of reactions in the active one.
func (m *Moderator) Announce(text string) {
	admin, ok := m.roster.Admin()
	author := "Admin"
	authorID := ""
	if ok {
		author = admin.Name
		authorID = admin.ID
	}

	for _, ch := range m.store.Channels() {
		msg := chat.NewMessage(ch.ID, authorID, author, text)
		msg.Type = chat.TypeAnnouncement
		if err := m.store.Append(msg); err != nil {
			m.logger.Warn("announcement not posted", zap.String("channel", ch.Name), zap.Error(err))
		}
	}

	m.record("broadcast", "all channels", excerpt(text, 50))
	m.sim.TriggerWidespreadReaction(text, m.store.ActiveChannel())
}

// ExportLogs serializes every channel's transcript to JSON.
func (m *Moderator) ExportLogs() ([]byte, error) {
	export := make(map[string][]chat.Message)
	for _, ch := range m.store.Channels() {
		export[ch.Name] = m.store.History(ch.ID)
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export logs: %w", err)
	}
	return data, nil
}

func durationText(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%g minute(s)", d.Minutes())
	}
	return fmt.Sprintf("%d seconds", int(d.Seconds()))
}

func excerpt(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
