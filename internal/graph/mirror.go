package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/persona"
)

// Bond is an affinity edge between two participants as stored in the graph.
type Bond struct {
	FromID       string    `json:"from_id"`
	ToID         string    `json:"to_id"`
	Affinity     float64   `json:"affinity"`
	Interactions int       `json:"interactions"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AffinityMirror keeps a write-behind copy of the roster's relationship web
// in Neo4j so the social graph can be queried and visualized out of band.
// The roster stays authoritative; the mirror never feeds state back into the
// simulation.
type AffinityMirror struct {
	driver neo4j.DriverWithContext
	roster *persona.Roster
	logger *zap.Logger
}

// NewAffinityMirror creates a graph mirror over an existing Neo4j driver.
func NewAffinityMirror(driver neo4j.DriverWithContext, roster *persona.Roster, logger *zap.Logger) *AffinityMirror {
	return &AffinityMirror{driver: driver, roster: roster, logger: logger}
}

// Sync pushes the full roster into the graph: one Participant node per
// member and one AFFINITY edge per tracked relationship. MERGE keeps the
// operation idempotent across ticks.
func (m *AffinityMirror) Sync(ctx context.Context) error {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	for _, a := range m.roster.All() {
		_, err := session.Run(ctx,
			`MERGE (p:Participant {id: $id})
			 SET p.name = $name, p.personality = $personality, p.presence = $presence`,
			map[string]interface{}{
				"id":          a.ID,
				"name":        a.Name,
				"personality": a.Personality,
				"presence":    string(a.Presence),
			})
		if err != nil {
			return fmt.Errorf("sync participant %s: %w", a.Name, err)
		}

		for otherID, rel := range a.Relationships {
			_, err := session.Run(ctx,
				`MATCH (a:Participant {id: $from})
				 MERGE (b:Participant {id: $to})
				 MERGE (a)-[r:AFFINITY]->(b)
				 SET r.affinity = $affinity, r.interactions = $interactions, r.updated_at = datetime()`,
				map[string]interface{}{
					"from":         a.ID,
					"to":           otherID,
					"affinity":     rel.Affinity,
					"interactions": rel.Interactions,
				})
			if err != nil {
				return fmt.Errorf("sync affinity %s->%s: %w", a.ID, otherID, err)
			}
		}
	}
	return nil
}

// Bonds returns all outgoing affinity edges for a participant.
func (m *AffinityMirror) Bonds(ctx context.Context, participantID string) ([]*Bond, error) {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Participant {id: $id})-[r:AFFINITY]->(b:Participant)
		 RETURN b.id, r.affinity, r.interactions`,
		map[string]interface{}{"id": participantID})
	if err != nil {
		return nil, fmt.Errorf("query bonds: %w", err)
	}

	var bonds []*Bond
	for result.Next(ctx) {
		rec := result.Record()
		toID, _ := rec.Get("b.id")
		affinity, _ := rec.Get("r.affinity")
		interactions, _ := rec.Get("r.interactions")

		n := 0
		if i, ok := interactions.(int64); ok {
			n = int(i)
		}
		bonds = append(bonds, &Bond{
			FromID:       participantID,
			ToID:         toID.(string),
			Affinity:     affinity.(float64),
			Interactions: n,
		})
	}
	return bonds, nil
}

// Rivals returns the most hostile edges in the whole graph, strongest
// animosity first.
func (m *AffinityMirror) Rivals(ctx context.Context, limit int) ([]*Bond, error) {
	session := m.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		`MATCH (a:Participant)-[r:AFFINITY]->(b:Participant)
		 WHERE r.affinity < 0
		 RETURN a.id, b.id, r.affinity, r.interactions
		 ORDER BY r.affinity ASC LIMIT $limit`,
		map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("query rivals: %w", err)
	}

	var bonds []*Bond
	for result.Next(ctx) {
		rec := result.Record()
		fromID, _ := rec.Get("a.id")
		toID, _ := rec.Get("b.id")
		affinity, _ := rec.Get("r.affinity")
		interactions, _ := rec.Get("r.interactions")

		n := 0
		if i, ok := interactions.(int64); ok {
			n = int(i)
		}
		bonds = append(bonds, &Bond{
			FromID:       fromID.(string),
			ToID:         toID.(string),
			Affinity:     affinity.(float64),
			Interactions: n,
		})
	}
	return bonds, nil
}

// SyncJob returns a clock job function that mirrors the roster and logs
// failures instead of propagating them. Graph availability must never stall
// the simulation.
func (m *AffinityMirror) SyncJob() func(time.Time) {
	return func(time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.Sync(ctx); err != nil {
			m.logger.Warn("graph sync failed", zap.Error(err))
		}
	}
}
