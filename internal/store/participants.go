package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/persona"
)

// SaveParticipant upserts a snapshot of a participant's identity and state.
func (s *Store) SaveParticipant(ctx context.Context, a persona.Agent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO participants (id, name, role, personality, style, mood, presence,
			energy, engagement, activity_level, response_speed, rule_breaker,
			conflict_prone, warnings, banned, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			mood = EXCLUDED.mood,
			presence = EXCLUDED.presence,
			energy = EXCLUDED.energy,
			engagement = EXCLUDED.engagement,
			warnings = EXCLUDED.warnings,
			banned = EXCLUDED.banned,
			updated_at = NOW()`,
		a.ID, a.Name, string(a.Role), a.Personality, a.Style, a.Mood,
		string(a.Presence), a.Energy, a.Engagement, a.ActivityLevel,
		a.ResponseSpeed, a.RuleBreaker, a.ConflictProne, a.Warnings, a.Banned,
	)
	if err != nil {
		return fmt.Errorf("save participant %s: %w", a.Name, err)
	}
	return nil
}

// SnapshotRoster persists the whole population in one pass.
func (s *Store) SnapshotRoster(ctx context.Context, roster *persona.Roster) error {
	for _, a := range roster.All() {
		if err := s.SaveParticipant(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotJob returns a clock job that persists the roster and logs
// failures instead of propagating them.
func (s *Store) SnapshotJob(roster *persona.Roster) func(time.Time) {
	return func(time.Time) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.SnapshotRoster(ctx, roster); err != nil {
			s.logger.Warn("roster snapshot failed", zap.Error(err))
		}
	}
}
