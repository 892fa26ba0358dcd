package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// Decision is the oracle's verdict on whether anyone should speak.
type Decision struct {
	ShouldRespond bool
	Reason        string
	ResponderType string
	Quality       int
}

// Oracle decides whether the channel deserves a new message right now.
// It leans on the provider for judgment and degrades to a low random
// chance when the provider is down, so the world never goes fully mute.
type Oracle struct {
	roster *persona.Roster
	router *provider.Router
	model  string
	tuning config.Tuning
	rng    *Rand
	logger *zap.Logger
}

// NewOracle creates a response decision oracle.
func NewOracle(roster *persona.Roster, router *provider.Router, model string, tuning config.Tuning, rng *Rand, logger *zap.Logger) *Oracle {
	return &Oracle{roster: roster, router: router, model: model, tuning: tuning, rng: rng, logger: logger}
}

const oracleSystemPrompt = `Analyze chat context with EXTREME selectivity.
Respond JSON: {"should_respond": true/false, "reason": "explanation", "responder_type": "active/interested/mentioned/none", "conversation_quality": 0-10}

CRITICAL: Respond TRUE only if:
- Direct question asked
- Topic highly engaging
- Natural conversation flow continuing
- Someone mentioned specifically
- Emotional response warranted

Respond FALSE (most common) if:
- Just statements with no hooks
- Topic exhausted
- Too many recent messages
- Low engagement potential
- Natural conversation pause

Quality matters: Only respond to high-quality conversation opportunities (7+/10).`

// Decide evaluates the recent window of a channel.
func (o *Oracle) Decide(ctx context.Context, recent []chat.Message, channelName string, now time.Time) Decision {
	if len(recent) == 0 {
		return Decision{
			ShouldRespond: o.rng.Chance(o.tuning.InitiateChance),
			Reason:        "initiate",
			ResponderType: "proactive",
		}
	}

	online := 0
	for _, a := range o.roster.Eligible(now) {
		if a.Presence == persona.PresenceOnline || a.Presence == persona.PresenceActive {
			online++
		}
	}
	if online == 0 {
		return Decision{}
	}

	tail := recent
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	var lines []string
	for _, m := range tail {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Author, m.Text))
	}

	resp, err := o.router.Route(ctx, "oracle", &provider.ChatRequest{
		Model:       o.model,
		Temperature: 0.7,
		JSONMode:    true,
		Messages: []provider.Message{
			{Role: "system", Content: oracleSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(
				"Channel: %s\nLast messages:\n%s\n\n%d online. Should anyone respond? Be selective.",
				channelName, strings.Join(lines, "\n"), online)},
		},
	})
	if err != nil {
		o.logger.Warn("decision oracle unavailable, using random gate", zap.Error(err))
		return Decision{ShouldRespond: o.rng.Chance(o.tuning.FallbackChance), Reason: "fallback"}
	}

	var parsed struct {
		ShouldRespond bool   `json:"should_respond"`
		Reason        string `json:"reason"`
		ResponderType string `json:"responder_type"`
		Quality       *int   `json:"conversation_quality"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		o.logger.Warn("unparseable oracle verdict, using random gate", zap.Error(err))
		return Decision{ShouldRespond: o.rng.Chance(o.tuning.FallbackChance), Reason: "fallback"}
	}

	quality := 5
	if parsed.Quality != nil {
		quality = *parsed.Quality
	}
	reason := parsed.Reason
	if reason == "" {
		reason = "unknown"
	}
	responderType := parsed.ResponderType
	if responderType == "" {
		responderType = "none"
	}
	return Decision{
		ShouldRespond: parsed.ShouldRespond && quality >= o.tuning.QualityThreshold,
		Reason:        reason,
		ResponderType: responderType,
		Quality:       quality,
	}
}
