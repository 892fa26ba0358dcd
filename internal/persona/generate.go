package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/provider"
)

// namePool backs username generation when the provider is unavailable.
var namePool = []string{
	"Nova", "Pixel", "Echo", "Rogue", "Vibe", "Atlas", "Luna", "Drift",
	"Aero", "Kai", "Ivy", "Zed", "Mira", "Flux", "Juno", "Zen",
	"Astra", "Quinn", "Bolt", "Skye",
}

// Generator populates a roster with randomized participants.
type Generator struct {
	router *provider.Router
	model  string
	rng    *rand.Rand
	logger *zap.Logger
}

// NewGenerator creates a population generator. The router may be nil, in
// which case usernames always come from the local pool.
func NewGenerator(router *provider.Router, model string, rng *rand.Rand, logger *zap.Logger) *Generator {
	return &Generator{router: router, model: model, rng: rng, logger: logger}
}

// Populate fills the roster with an admin plus between min-1 and max-1
// generated members, and wires up initial relationships.
func (g *Generator) Populate(ctx context.Context, roster *Roster, adminName string, min, max int) error {
	if min < 2 {
		min = 2
	}
	if max < min {
		max = min
	}
	total := g.rng.Intn(max-min+1) + min
	needed := total - 1

	now := time.Now()
	admin := &Agent{
		ID:            uuid.NewString(),
		Name:          adminName,
		Role:          RoleAdmin,
		Personality:   "Helpful Senior Member",
		Style:         "friendly",
		Mood:          "neutral",
		Energy:        1,
		Engagement:    1,
		Presence:      PresenceOnline,
		LastSeen:      now,
		ActivityLevel: 0,
		ResponseSpeed: 1,
	}
	if err := roster.Add(admin); err != nil {
		return fmt.Errorf("add admin: %w", err)
	}

	names := g.usernames(ctx, needed, adminName)
	for _, name := range names {
		a := g.newMember(name, now)
		if err := roster.Add(a); err != nil {
			g.logger.Warn("skipping duplicate username", zap.String("name", name))
			continue
		}
	}

	g.seedRelationships(roster)
	g.logger.Info("population generated", zap.Int("participants", roster.Len()))
	return nil
}

func (g *Generator) newMember(name string, now time.Time) *Agent {
	personality := Personalities[g.rng.Intn(len(Personalities))]
	presence := PresenceOffline
	if g.rng.Float64() < 0.6 {
		presence = PresenceOnline
	}
	return &Agent{
		ID:            uuid.NewString(),
		Name:          name,
		Role:          RoleMember,
		Personality:   personality,
		Style:         Styles[g.rng.Intn(len(Styles))],
		Mood:          Moods[g.rng.Intn(len(Moods))],
		RuleBreaker:   g.rng.Float64() < 0.3,
		ConflictProne: g.rng.Float64() < 0.25,
		ActivityLevel: g.rng.Float64(),
		ResponseSpeed: g.rng.Float64()*0.5 + 0.5,
		Energy:        g.rng.Float64(),
		Engagement:    g.rng.Float64(),
		Presence:      presence,
		LastSeen:      now,
		Interests:     generateInterests(personality, g.rng),
	}
}

// seedRelationships gives every pair of members a random starting affinity.
func (g *Generator) seedRelationships(roster *Roster) {
	agents := roster.All()
	roster.UpdateAll(func(a *Agent) {
		for _, other := range agents {
			if other.ID == a.ID {
				continue
			}
			a.RelationshipWith(other.ID).Affinity = g.rng.Float64()*2 - 1
		}
	})
}

// usernames asks the provider for realistic usernames, topping up from the
// local pool on failure or shortfall.
func (g *Generator) usernames(ctx context.Context, needed int, reserved string) []string {
	var names []string
	if g.router != nil && needed > 0 {
		names = g.generatedUsernames(ctx, needed)
	}

	seen := map[string]bool{strings.ToLower(reserved): true}
	unique := names[:0]
	for _, n := range names {
		key := strings.ToLower(n)
		if n == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, n)
	}
	names = unique

	for len(names) < needed {
		base := namePool[g.rng.Intn(len(namePool))]
		candidate := base
		if g.rng.Float64() >= 0.5 {
			candidate = fmt.Sprintf("%s%d", base, g.rng.Intn(999))
		}
		if len(candidate) > 16 {
			candidate = candidate[:16]
		}
		if key := strings.ToLower(candidate); !seen[key] {
			seen[key] = true
			names = append(names, candidate)
		}
	}
	return names[:needed]
}

func (g *Generator) generatedUsernames(ctx context.Context, n int) []string {
	resp, err := g.router.Route(ctx, "worldgen", &provider.ChatRequest{
		Model: g.model,
		Messages: []provider.Message{
			{Role: "system", Content: fmt.Sprintf(
				`Generate %d distinct, realistic social media usernames in English. Short, human-like, no spaces, 3-16 chars, mix of letters/numbers optionally. Respond ONLY as: {"users":["name1","name2",...]}`, n)},
			{Role: "user", Content: fmt.Sprintf("%d unique usernames, no duplicates, no quotes inside names.", n)},
		},
		JSONMode: true,
	})
	if err != nil {
		g.logger.Warn("username generation unavailable, using local pool", zap.Error(err))
		return nil
	}
	var parsed struct {
		Users []string `json:"users"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		g.logger.Warn("unparseable username response, using local pool", zap.Error(err))
		return nil
	}
	return parsed.Users
}
