package sim

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/persona"
)

func TestPostProcessRuleBreaker(t *testing.T) {
	g := &Generator{rng: NewRand(17), logger: zap.NewNop()}
	breaker := persona.Agent{Name: "Zed", RuleBreaker: true}

	shouted, exclaimed := false, false
	for i := 0; i < 2000; i++ {
		out := g.postProcess(breaker, "this is a calm message")
		if out == "THIS IS A CALM MESSAGE" {
			shouted = true
		}
		if strings.HasPrefix(out, "this is a calm message!") {
			exclaimed = true
		}
	}
	if !shouted {
		t.Error("rule breaker never shouted")
	}
	if !exclaimed {
		t.Error("rule breaker never piled on exclamation marks")
	}
}

func TestPostProcessPlainAgentNeverShouts(t *testing.T) {
	g := &Generator{rng: NewRand(17), logger: zap.NewNop()}
	plain := persona.Agent{Name: "Mira"}

	for i := 0; i < 2000; i++ {
		out := g.postProcess(plain, "this is a calm message")
		if out == strings.ToUpper(out) {
			t.Fatal("well-behaved participant shouted")
		}
		if strings.Contains(out, "!") {
			t.Fatal("well-behaved participant gained exclamation marks")
		}
		// Typos only ever delete a single character.
		if diff := len("this is a calm message") - len(out); diff != 0 && diff != 1 {
			t.Fatalf("unexpected mutation: %q", out)
		}
	}
}

func TestPostProcessTypoSkipsShortMessages(t *testing.T) {
	g := &Generator{rng: NewRand(17), logger: zap.NewNop()}
	plain := persona.Agent{Name: "Mira"}

	for i := 0; i < 2000; i++ {
		if out := g.postProcess(plain, "ok fr"); out != "ok fr" {
			t.Fatalf("short message mutated: %q", out)
		}
	}
}
