package sim

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

func presenceWorld(t *testing.T, agents ...*persona.Agent) (*persona.Roster, *chat.Store, *PresenceEngine) {
	t.Helper()
	r := persona.NewRoster(zap.NewNop())
	for _, a := range agents {
		if err := r.Add(a); err != nil {
			t.Fatal(err)
		}
	}
	store := chat.NewStore(zap.NewNop())
	store.AddChannel("General")
	e := NewPresenceEngine(r, store, config.DefaultTuning(), NewRand(5), zap.NewNop())
	return r, store, e
}

func TestPresenceAdminNeverTransitions(t *testing.T) {
	now := time.Now()
	admin := &persona.Agent{
		ID: "adm", Name: "Overseer", Role: persona.RoleAdmin,
		Presence: persona.PresenceOnline, LastSeen: now.Add(-time.Hour),
	}
	r, _, e := presenceWorld(t, admin)

	for i := 0; i < 200; i++ {
		e.Tick(now.Add(time.Duration(i) * 8 * time.Second))
	}
	got, _ := r.Get("adm")
	if got.Presence != persona.PresenceOnline {
		t.Errorf("admin presence = %q, want online", got.Presence)
	}
}

func TestPresenceOfflineEventuallyJoins(t *testing.T) {
	now := time.Now()
	a := &persona.Agent{
		ID: "a", Name: "Nova", Presence: persona.PresenceOffline,
		ActivityLevel: 1, LastSeen: now,
	}
	r, store, e := presenceWorld(t, a)

	for i := 0; i < 500; i++ {
		e.Tick(now.Add(time.Duration(i) * 8 * time.Second))
		if got, _ := r.Get("a"); got.Presence != persona.PresenceOffline {
			break
		}
	}
	got, _ := r.Get("a")
	if got.Presence == persona.PresenceOffline {
		t.Fatal("high-activity participant never came online")
	}

	// Join notices, when they fire, are system messages in the focused channel.
	for _, m := range store.History(store.ActiveChannel()) {
		if !m.System {
			t.Errorf("unexpected non-system message during presence ticks: %+v", m)
		}
	}
}

func TestPresenceZeroActivityStaysOffline(t *testing.T) {
	now := time.Now()
	a := &persona.Agent{ID: "a", Name: "Hermit", Presence: persona.PresenceOffline, ActivityLevel: 0}
	r, _, e := presenceWorld(t, a)

	for i := 0; i < 300; i++ {
		e.Tick(now.Add(time.Duration(i) * 8 * time.Second))
	}
	got, _ := r.Get("a")
	if got.Presence != persona.PresenceOffline {
		t.Errorf("zero-activity participant came online: %q", got.Presence)
	}
}

func TestPresenceEngagedGoesActive(t *testing.T) {
	now := time.Now()
	a := &persona.Agent{
		ID: "a", Name: "Nova", Presence: persona.PresenceOnline,
		Engagement: 0.9, LastSeen: now,
	}
	r, _, e := presenceWorld(t, a)

	e.Tick(now)
	got, _ := r.Get("a")
	if got.Presence != persona.PresenceActive {
		t.Errorf("engaged participant = %q, want active", got.Presence)
	}
}

func TestPresenceActiveIdlesBackToOnline(t *testing.T) {
	now := time.Now()
	a := &persona.Agent{
		ID: "a", Name: "Nova", Presence: persona.PresenceActive,
		Engagement: 0.1, LastSeen: now.Add(-2 * time.Minute),
	}
	r, _, e := presenceWorld(t, a)

	e.Tick(now)
	got, _ := r.Get("a")
	if got.Presence != persona.PresenceOnline {
		t.Errorf("idle active participant = %q, want online", got.Presence)
	}
}

func TestPresenceAFKEventuallyRecovers(t *testing.T) {
	now := time.Now()
	a := &persona.Agent{ID: "a", Name: "Nova", Presence: persona.PresenceAFK, LastSeen: now}
	r, _, e := presenceWorld(t, a)

	for i := 0; i < 500; i++ {
		e.Tick(now.Add(time.Duration(i) * 8 * time.Second))
		if got, _ := r.Get("a"); got.Presence != persona.PresenceAFK {
			return
		}
	}
	t.Fatal("afk participant never recovered")
}
