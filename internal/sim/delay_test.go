package sim

import (
	"testing"
	"time"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

func TestDelayMentionIsFaster(t *testing.T) {
	tuning := config.DefaultTuning()
	a := persona.Agent{
		Name:          "Nova",
		Energy:        0.5,
		Mood:          "neutral",
		Presence:      persona.PresenceOnline,
		ResponseSpeed: 1,
	}
	plain := []chat.Message{{Text: "anyone around"}}
	mention := []chat.Message{{Text: "hey @Nova what do you think"}}

	// Presence adds jitter, so compare averages over many draws.
	rng := NewRand(7)
	var plainSum, mentionSum time.Duration
	for i := 0; i < 200; i++ {
		plainSum += Delay(tuning, a, plain, rng)
		mentionSum += Delay(tuning, a, mention, rng)
	}
	if mentionSum >= plainSum {
		t.Errorf("mentioned delay %v should average below plain delay %v", mentionSum/200, plainSum/200)
	}
}

func TestDelayPresenceOrdering(t *testing.T) {
	tuning := config.DefaultTuning()
	base := persona.Agent{Energy: 0.5, Mood: "neutral", ResponseSpeed: 1}

	rng := NewRand(11)
	sum := func(p persona.Presence) time.Duration {
		a := base
		a.Presence = p
		var total time.Duration
		for i := 0; i < 200; i++ {
			total += Delay(tuning, a, nil, rng)
		}
		return total
	}

	active := sum(persona.PresenceActive)
	online := sum(persona.PresenceOnline)
	afk := sum(persona.PresenceAFK)

	if !(active < online && online < afk) {
		t.Errorf("delay ordering wrong: active %v, online %v, afk %v", active/200, online/200, afk/200)
	}
}

func TestDelayMoodMultipliers(t *testing.T) {
	tuning := config.DefaultTuning()
	rng := NewRand(3)

	excited := persona.Agent{Energy: 1, Mood: "excited", Presence: persona.PresenceActive, ResponseSpeed: 1}
	bored := persona.Agent{Energy: 1, Mood: "bored", Presence: persona.PresenceActive, ResponseSpeed: 1}

	var excitedSum, boredSum time.Duration
	for i := 0; i < 200; i++ {
		excitedSum += Delay(tuning, excited, nil, rng)
		boredSum += Delay(tuning, bored, nil, rng)
	}
	if excitedSum >= boredSum {
		t.Errorf("excited should answer faster than bored: %v vs %v", excitedSum/200, boredSum/200)
	}
}
