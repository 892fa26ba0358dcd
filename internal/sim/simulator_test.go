package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// gateProvider fails oracle calls immediately but holds generation calls
// until released, so tests can observe in-flight state.
type gateProvider struct {
	release chan struct{}
	err     error
}

func (g *gateProvider) ID() string   { return "gate" }
func (g *gateProvider) Name() string { return "gate" }
func (g *gateProvider) Chat(_ context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if req.JSONMode {
		return nil, g.err
	}
	<-g.release
	return nil, g.err
}
func (g *gateProvider) ListModels(_ context.Context) ([]provider.Model, error) { return nil, nil }
func (g *gateProvider) HealthCheck(_ context.Context) error                    { return g.err }

func simWorld(t *testing.T, p provider.Provider, tune func(*config.Tuning)) (*Simulator, *persona.Roster, *chat.Store, string) {
	t.Helper()
	logger := zap.NewNop()

	roster := persona.NewRoster(logger)
	admin := member("admin", "Operator", persona.PresenceOnline)
	admin.Role = persona.RoleAdmin
	for _, a := range []*persona.Agent{admin, member("m1", "Nova", persona.PresenceOnline)} {
		if err := roster.Add(a); err != nil {
			t.Fatal(err)
		}
	}

	store := chat.NewStore(logger)
	ch := store.AddChannel("General")
	if err := store.SetActive(ch.ID); err != nil {
		t.Fatal(err)
	}

	router := provider.NewRouter(logger)
	router.Register(p)

	tuning := config.DefaultTuning()
	tuning.BaseDelay = 0
	tuning.FlowChance = 0
	tuning.ProactiveChance = 0
	if tune != nil {
		tune(&tuning)
	}

	rng := NewRand(11)
	clock := NewClock(time.Hour, logger)
	oracle := NewOracle(roster, router, "test-model", tuning, rng, logger)
	selector := NewSelector(roster, tuning, rng)
	generator := NewGenerator(router, "test-model", "English", nil, rng, logger)
	updater := NewUpdater(roster, tuning, rng, nil)
	presence := NewPresenceEngine(roster, store, tuning, rng, logger)
	drift := NewDriftEngine(roster, tuning, rng)

	sim := NewSimulator(roster, store, oracle, selector, generator,
		updater, presence, drift, tuning, rng, clock, logger)
	return sim, roster, store, ch.ID
}

func TestConcurrentRestartIsSafe(t *testing.T) {
	sim, _, _, chID := simWorld(t, &stubProvider{err: errors.New("model down")}, nil)

	sim.Start()
	sim.Stop()

	// Moderation restarts the simulation on every action, so Start can
	// arrive from several requests at once while an operator stops it.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sim.Start()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sim.TriggerWidespreadReaction("server maintenance tonight", chID)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		sim.Stop()
	}()
	wg.Wait()

	sim.Stop()
}

func TestDoubleStartSingleEmissionPerTick(t *testing.T) {
	sim, _, store, chID := simWorld(t, &stubProvider{
		reply: `{"should_respond": true, "reason": "direct question", "responder_type": "mentioned", "conversation_quality": 9}`,
	}, nil)
	defer sim.Stop()

	seed := chat.NewMessage(chID, "u1", "Visitor", "@Nova what do you think?")
	if err := store.Append(seed); err != nil {
		t.Fatal(err)
	}

	sim.Start()
	sim.Start()

	// The clock resolution is far out; drive it by hand. The first pass
	// primes job deadlines, the second is one due tick window.
	t0 := time.Now()
	sim.clock.Tick(t0)
	sim.clock.Tick(t0.Add(sim.tuning.MainTick))

	deadline := time.Now().Add(2 * time.Second)
	for store.Len(chID) < 2 {
		if time.Now().After(deadline) {
			t.Fatal("no message emitted for the tick")
		}
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)
	if n := store.Len(chID); n != 2 {
		t.Errorf("channel has %d messages after one tick window, want 2", n)
	}
}

func TestTypingClearedWhenGenerationFails(t *testing.T) {
	gate := &gateProvider{release: make(chan struct{}), err: errors.New("model down")}
	sim, roster, store, chID := simWorld(t, gate, func(tn *config.Tuning) {
		tn.FallbackChance = 1
	})
	defer sim.Stop()

	seed := chat.NewMessage(chID, "u1", "Visitor", "@Nova what do you think?")
	if err := store.Append(seed); err != nil {
		t.Fatal(err)
	}

	sim.step(time.Now())

	a, ok := roster.Get("m1")
	if !ok || !a.Typing {
		t.Fatal("responder not typing while generation is in flight")
	}

	close(gate.release)

	deadline := time.Now().Add(2 * time.Second)
	for {
		a, _ := roster.Get("m1")
		if !a.Typing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("typing flag never released after generation failure")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := store.Len(chID); n != 1 {
		t.Errorf("channel has %d messages, want only the seed", n)
	}
}

func TestRunVoteAnnouncesAndTallies(t *testing.T) {
	sim, roster, store, chID := simWorld(t, &stubProvider{err: errors.New("model down")}, nil)
	defer sim.Stop()

	if err := roster.Add(member("m2", "Kai", persona.PresenceOnline)); err != nil {
		t.Fatal(err)
	}

	sim.RunVote("pizza or tacos?", []string{"pizza", "tacos"}, chID, 50*time.Millisecond)

	recent := store.Recent(chID, 10)
	if len(recent) == 0 {
		t.Fatal("no vote announcement posted")
	}
	start := recent[0]
	if start.Type != chat.TypeVoteStart || !start.System {
		t.Fatalf("first message is not a vote announcement: %+v", start)
	}
	if start.Details["question"] != "pizza or tacos?" {
		t.Errorf("announcement question = %v", start.Details["question"])
	}
	if opts, ok := start.Details["options"].([]string); !ok || len(opts) != 2 {
		t.Errorf("announcement options = %v", start.Details["options"])
	}

	// Ballots fall back to random picks when the model is down; the tally
	// still has to land after the duration.
	deadline := time.Now().Add(2 * time.Second)
	for {
		var result *chat.Message
		for _, m := range store.Recent(chID, 20) {
			if m.Type == chat.TypeVoteResult {
				m := m
				result = &m
			}
		}
		if result != nil {
			if total, ok := result.Details["total_votes"].(int); !ok || total != 1 {
				t.Errorf("total_votes = %v, want 1", result.Details["total_votes"])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("vote result never posted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
