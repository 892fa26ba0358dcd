package sim

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) ID() string   { return "stub" }
func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Chat(_ context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &provider.ChatResponse{Content: s.reply}, nil
}
func (s *stubProvider) ListModels(_ context.Context) ([]provider.Model, error) { return nil, nil }
func (s *stubProvider) HealthCheck(_ context.Context) error                    { return s.err }

func oracleWorld(t *testing.T, p provider.Provider) (*persona.Roster, *Oracle) {
	t.Helper()
	r := persona.NewRoster(zap.NewNop())
	a := member("a", "Nova", persona.PresenceOnline)
	if err := r.Add(a); err != nil {
		t.Fatal(err)
	}
	router := provider.NewRouter(zap.NewNop())
	if p != nil {
		router.Register(p)
	}
	return r, NewOracle(r, router, "test-model", config.DefaultTuning(), NewRand(21), zap.NewNop())
}

func someMessages() []chat.Message {
	return []chat.Message{{AuthorID: "u", Author: "Someone", Text: "is anyone into speedruns?"}}
}

func TestOracleEmptyHistorySelfInitiates(t *testing.T) {
	_, o := oracleWorld(t, &stubProvider{err: errors.New("never called")})

	hits := 0
	for i := 0; i < 5000; i++ {
		d := o.Decide(context.Background(), nil, "General", time.Now())
		if d.ShouldRespond {
			hits++
			if d.Reason != "initiate" {
				t.Fatalf("reason = %q, want initiate", d.Reason)
			}
		}
	}
	// p = 0.08; allow wide slack around the expectation of 400.
	if hits < 250 || hits > 600 {
		t.Errorf("self-initiation fired %d/5000, expected around 400", hits)
	}
}

func TestOracleAcceptsHighQualityVerdict(t *testing.T) {
	_, o := oracleWorld(t, &stubProvider{
		reply: `{"should_respond": true, "reason": "direct question", "responder_type": "interested", "conversation_quality": 8}`,
	})
	d := o.Decide(context.Background(), someMessages(), "General", time.Now())
	if !d.ShouldRespond {
		t.Fatal("high-quality verdict rejected")
	}
	if d.Reason != "direct question" || d.Quality != 8 {
		t.Errorf("decision = %+v", d)
	}
}

func TestOracleRejectsLowQuality(t *testing.T) {
	_, o := oracleWorld(t, &stubProvider{
		reply: `{"should_respond": true, "reason": "weak", "conversation_quality": 4}`,
	})
	if d := o.Decide(context.Background(), someMessages(), "General", time.Now()); d.ShouldRespond {
		t.Fatal("verdict below quality threshold should be rejected")
	}
}

func TestOracleFallbackOnProviderFailure(t *testing.T) {
	_, o := oracleWorld(t, &stubProvider{err: errors.New("provider down")})

	hits := 0
	for i := 0; i < 5000; i++ {
		d := o.Decide(context.Background(), someMessages(), "General", time.Now())
		if d.ShouldRespond {
			hits++
			if d.Reason != "fallback" {
				t.Fatalf("reason = %q, want fallback", d.Reason)
			}
		}
	}
	// p = 0.15; expectation 750.
	if hits < 550 || hits > 1000 {
		t.Errorf("fallback fired %d/5000, expected around 750", hits)
	}
}

func TestOracleSilentWhenNobodyOnline(t *testing.T) {
	r, o := oracleWorld(t, &stubProvider{reply: `{"should_respond": true, "conversation_quality": 10}`})
	r.UpdateAll(func(a *persona.Agent) { a.Presence = persona.PresenceOffline })

	if d := o.Decide(context.Background(), someMessages(), "General", time.Now()); d.ShouldRespond {
		t.Fatal("oracle should stay silent with nobody online")
	}
}
