//go:build e2e

package e2e

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nidhogg/terrarium/internal/graph"
	"github.com/nidhogg/terrarium/internal/persona"
)

func TestAffinityMirrorSync(t *testing.T) {
	ctx := context.Background()

	roster := persona.NewRoster(testLogger)
	ids := map[string]string{
		"Nova": uuid.NewString(),
		"Kai":  uuid.NewString(),
		"Lux":  uuid.NewString(),
	}
	for name, id := range ids {
		a := &persona.Agent{
			ID:       id,
			Name:     name,
			Role:     persona.RoleMember,
			Presence: persona.PresenceOnline,
		}
		if err := roster.Add(a); err != nil {
			t.Fatal(err)
		}
	}
	roster.Update(ids["Nova"], func(a *persona.Agent) {
		rel := a.RelationshipWith(ids["Kai"])
		rel.Affinity = 0.8
		rel.Interactions = 12
		rival := a.RelationshipWith(ids["Lux"])
		rival.Affinity = -0.6
		rival.Interactions = 4
	})

	mirror := graph.NewAffinityMirror(testNeo4j, roster, testLogger)
	if err := mirror.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	bonds, err := mirror.Bonds(ctx, ids["Nova"])
	if err != nil {
		t.Fatalf("bonds: %v", err)
	}
	if len(bonds) != 2 {
		t.Fatalf("got %d bonds, want 2", len(bonds))
	}

	found := map[string]float64{}
	for _, b := range bonds {
		found[b.ToID] = b.Affinity
	}
	if found[ids["Kai"]] != 0.8 {
		t.Errorf("Kai affinity = %v, want 0.8", found[ids["Kai"]])
	}
	if found[ids["Lux"]] != -0.6 {
		t.Errorf("Lux affinity = %v, want -0.6", found[ids["Lux"]])
	}

	// A second sync updates in place rather than duplicating edges.
	roster.Update(ids["Nova"], func(a *persona.Agent) {
		a.RelationshipWith(ids["Kai"]).Affinity = 0.9
	})
	if err := mirror.Sync(ctx); err != nil {
		t.Fatalf("resync: %v", err)
	}
	bonds, err = mirror.Bonds(ctx, ids["Nova"])
	if err != nil {
		t.Fatalf("bonds after resync: %v", err)
	}
	if len(bonds) != 2 {
		t.Fatalf("resync duplicated edges: got %d bonds", len(bonds))
	}

	rivals, err := mirror.Rivals(ctx, 5)
	if err != nil {
		t.Fatalf("rivals: %v", err)
	}
	if len(rivals) == 0 {
		t.Fatal("no rivals returned")
	}
	if rivals[0].Affinity > 0 {
		t.Errorf("worst bond has positive affinity %v", rivals[0].Affinity)
	}
}
