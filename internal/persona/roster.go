package persona

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Roster owns every participant in the world. All agent state is keyed by
// stable ID and mutated under the roster lock; reads hand out copies so
// callers never race against the simulation loops.
type Roster struct {
	agents map[string]*Agent
	byName map[string]string // lowercase name -> ID
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewRoster creates an empty roster.
func NewRoster(logger *zap.Logger) *Roster {
	return &Roster{
		agents: make(map[string]*Agent),
		byName: make(map[string]string),
		logger: logger,
	}
}

// Add registers an agent. Names are unique case-insensitively.
func (r *Roster) Add(a *Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := lowercase(a.Name)
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("name %q already taken", a.Name)
	}
	r.agents[a.ID] = a
	r.byName[key] = a.ID
	return nil
}

// Remove deletes an agent and every relationship pointing at it.
func (r *Roster) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return
	}
	delete(r.byName, lowercase(a.Name))
	delete(r.agents, id)
	for _, other := range r.agents {
		delete(other.Relationships, id)
	}
}

// Get returns a snapshot of the agent with the given ID.
func (r *Roster) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return Agent{}, false
	}
	return snapshot(a), true
}

// GetByName returns a snapshot of the agent with the given name,
// matched case-insensitively.
func (r *Roster) GetByName(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[lowercase(name)]
	if !ok {
		return Agent{}, false
	}
	return snapshot(r.agents[id]), true
}

// All returns snapshots of every agent, ordered by name for stable output.
func (r *Roster) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, snapshot(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of participants.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Update applies fn to the agent with the given ID under the roster lock.
// The simulation loops use this for every state mutation.
func (r *Roster) Update(id string, fn func(*Agent)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return false
	}
	fn(a)
	return true
}

// UpdateAll applies fn to every agent under a single lock acquisition.
func (r *Roster) UpdateAll(fn func(*Agent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		fn(a)
	}
}

// Rename changes an agent's display name. Relationships are keyed by ID so
// no migration is needed there; only the name index moves.
func (r *Roster) Rename(id, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("unknown participant %s", id)
	}
	key := lowercase(newName)
	if existing, taken := r.byName[key]; taken && existing != id {
		return fmt.Errorf("name %q already taken", newName)
	}
	delete(r.byName, lowercase(a.Name))
	old := a.Name
	a.Name = newName
	r.byName[key] = id
	r.logger.Info("participant renamed",
		zap.String("id", id), zap.String("from", old), zap.String("to", newName))
	return nil
}

// SetTyping marks or clears the typing indicator.
func (r *Roster) SetTyping(id string, typing bool) {
	r.Update(id, func(a *Agent) { a.Typing = typing })
}

// Admin returns the moderator account.
func (r *Roster) Admin() (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.agents {
		if a.Role == RoleAdmin {
			return snapshot(a), true
		}
	}
	return Agent{}, false
}

// Eligible returns snapshots of every non-admin agent that can currently
// produce a message.
func (r *Roster) Eligible(now time.Time) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Agent
	for _, a := range r.agents {
		if a.IsAdmin() || !a.CanSpeak(now) {
			continue
		}
		out = append(out, snapshot(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lowercase(s string) string { return strings.ToLower(s) }

// snapshot deep-copies the agent so the caller can read it lock-free.
func snapshot(a *Agent) Agent {
	cp := *a
	cp.Interests = append([]TopicInterest(nil), a.Interests...)
	cp.Journal = append([]string(nil), a.Journal...)
	cp.Events = append([]string(nil), a.Events...)
	cp.ConflictTriggers = append([]string(nil), a.ConflictTriggers...)
	if a.Relationships != nil {
		cp.Relationships = make(map[string]*Relationship, len(a.Relationships))
		for k, v := range a.Relationships {
			rel := *v
			cp.Relationships[k] = &rel
		}
	}
	if a.Conversation != nil {
		conv := *a.Conversation
		cp.Conversation = &conv
	}
	if a.MutedUntil != nil {
		t := *a.MutedUntil
		cp.MutedUntil = &t
	}
	return cp
}
