package sim

import (
	"strings"
	"time"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

// Delay computes how long a participant appears to type before their
// message lands. Energetic, excited, active participants answer fast;
// bored or half-away ones take their time. A direct mention cuts the wait.
func Delay(tuning config.Tuning, a persona.Agent, recent []chat.Message, rng *Rand) time.Duration {
	multiplier := 1.0

	multiplier *= 2 - a.Energy
	switch a.Mood {
	case "excited":
		multiplier *= 0.5
	case "bored":
		multiplier *= 1.8
	}

	switch a.Presence {
	case persona.PresenceActive:
		multiplier *= 0.4 + rng.Float64()*0.3
	case persona.PresenceOnline:
		multiplier *= 0.7 + rng.Float64()*0.6
	case persona.PresenceAFK:
		multiplier *= 2 + rng.Float64()*2
	}

	multiplier *= a.ResponseSpeed
	if a.MessageDelay > 0 {
		multiplier *= a.MessageDelay
	}

	if len(recent) > 0 {
		last := recent[len(recent)-1]
		if strings.Contains(last.Text, "@"+a.Name) {
			multiplier *= 0.4
		}
	}

	return time.Duration(float64(tuning.BaseDelay) * multiplier)
}
