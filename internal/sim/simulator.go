package sim

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/config"
	"github.com/nidhogg/terrarium/internal/persona"
)

// channelTopic is the rolling guess of what a channel is discussing.
type channelTopic struct {
	topic      string
	confidence float64
	updated    time.Time
}

// Simulator runs the whole behavioral engine: the main message loop, the
// conversation flow loop, emotional drift, presence, and proactive
// conversation starters, all as named clock jobs.
type Simulator struct {
	roster    *persona.Roster
	store     *chat.Store
	oracle    *Oracle
	selector  *Selector
	generator *Generator
	updater   *Updater
	presence  *PresenceEngine
	drift     *DriftEngine
	tuning    config.Tuning
	rng       *Rand
	clock     *Clock
	logger    *zap.Logger

	topics   map[string]*channelTopic
	topicsMu sync.Mutex

	// mu guards the run context so moderation-triggered restarts cannot
	// race Stop or in-flight message goroutines.
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSimulator wires the behavioral engine together.
func NewSimulator(
	roster *persona.Roster,
	store *chat.Store,
	oracle *Oracle,
	selector *Selector,
	generator *Generator,
	updater *Updater,
	presence *PresenceEngine,
	drift *DriftEngine,
	tuning config.Tuning,
	rng *Rand,
	clock *Clock,
	logger *zap.Logger,
) *Simulator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Simulator{
		roster:    roster,
		store:     store,
		oracle:    oracle,
		selector:  selector,
		generator: generator,
		updater:   updater,
		presence:  presence,
		drift:     drift,
		tuning:    tuning,
		rng:       rng,
		clock:     clock,
		logger:    logger,
		topics:    make(map[string]*channelTopic),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the simulation jobs and starts the clock. Safe to call
// more than once; a second Start never doubles the loops.
func (s *Simulator) Start() {
	s.mu.Lock()
	select {
	case <-s.ctx.Done():
		s.ctx, s.cancel = context.WithCancel(context.Background())
	default:
	}
	s.mu.Unlock()
	s.clock.AddJob("simulation", s.tuning.MainTick, s.step)
	s.clock.AddJob("flow", s.tuning.MainTick, s.flowStep)
	s.clock.AddJob("drift", s.tuning.MainTick, s.drift.Tick)
	s.clock.AddJob("presence", s.tuning.PresenceTick, s.presence.Tick)
	s.clock.AddJob("proactive", s.tuning.ProactiveTick, s.proactiveStep)
	s.clock.Start()
}

// Stop halts the clock and waits for in-flight message goroutines.
func (s *Simulator) Stop() {
	s.clock.Stop()
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}

// context returns the current run context.
func (s *Simulator) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// step is one pass of the main loop: pick a channel, consult the oracle,
// select a responder, and write a message after a realistic typing delay.
func (s *Simulator) step(now time.Time) {
	channels := s.store.Channels()
	if len(channels) == 0 {
		return
	}

	// Favor the focused channel, occasionally wander.
	channelID := s.store.ActiveChannel()
	if channelID == "" || !s.rng.Chance(0.85) {
		channelID = channels[s.rng.Intn(len(channels))].ID
	}
	channelName := channelID
	for _, ch := range channels {
		if ch.ID == channelID {
			channelName = ch.Name
			break
		}
	}

	recent := s.store.Recent(channelID, s.tuning.RecentWindow)

	decision := s.oracle.Decide(s.context(), recent, channelName, now)
	if !decision.ShouldRespond {
		return
	}

	responder, ok := s.selector.Select(recent, now)
	if !ok {
		return
	}

	delay := Delay(s.tuning, responder, recent, s.rng)
	s.roster.SetTyping(responder.ID, true)

	s.spawn(func() {
		defer s.roster.SetTyping(responder.ID, false)
		if !s.sleep(delay) {
			return
		}

		text, err := s.generator.Generate(s.context(), responder, channelName, recent, decision.Reason)
		if err != nil {
			s.logger.Warn("message generation failed",
				zap.String("persona", responder.Name), zap.Error(err))
			return
		}
		if text == "" {
			return
		}

		sentAt := time.Now()
		s.roster.Update(responder.ID, func(a *persona.Agent) { a.LastSeen = sentAt })
		s.updater.RecordOwnMessage(responder.ID, text, recent, sentAt)
		s.updater.ApplyEmotions(responder.ID, text, sentAt)
		s.updater.DriftRelationships(responder.ID, recent)

		msg := chat.NewMessage(channelID, responder.ID, responder.Name, text)
		if err := s.store.Append(msg); err != nil {
			s.logger.Warn("message dropped", zap.Error(err))
			return
		}
		s.TrackTopic(channelID, text, sentAt)
	})
}

// flowStep keeps threads alive: when the last message invites a reply,
// an interested bystander occasionally jumps in.
func (s *Simulator) flowStep(now time.Time) {
	channelID := s.store.ActiveChannel()
	if channelID == "" {
		return
	}
	recent := s.store.Recent(channelID, 5)
	if len(recent) < 2 {
		return
	}

	last := recent[len(recent)-1]
	if last.System {
		return
	}
	if admin, ok := s.roster.Admin(); ok && last.AuthorID == admin.ID {
		return
	}
	if !s.rng.Chance(s.tuning.FlowChance) {
		return
	}

	var interested []persona.Agent
	for _, a := range s.roster.Eligible(now) {
		if a.ID == last.AuthorID || a.Typing {
			continue
		}
		affinity := 0.0
		if rel, ok := a.Relationships[last.AuthorID]; ok {
			affinity = rel.Affinity
		}
		if affinity > -0.3 || topicMatch(a, []chat.Message{last}) || s.rng.Chance(0.2) {
			interested = append(interested, a)
		}
	}
	if len(interested) == 0 || !s.rng.Chance(s.tuning.FlowRespond) {
		return
	}

	responder := interested[s.rng.Intn(len(interested))]
	delay := Delay(s.tuning, responder, recent, s.rng)

	s.spawn(func() {
		if !s.sleep(delay) {
			return
		}
		s.RespondTo(responder.ID, last, channelID)
	})
}

// RespondTo has a participant answer one specific message directly.
func (s *Simulator) RespondTo(personaID string, target chat.Message, channelID string) {
	responder, ok := s.roster.Get(personaID)
	if !ok || responder.Typing {
		return
	}
	s.roster.SetTyping(personaID, true)
	defer s.roster.SetTyping(personaID, false)

	text, err := s.generator.GenerateReaction(s.context(), responder, target)
	if err != nil {
		s.logger.Warn("reaction generation failed",
			zap.String("persona", responder.Name), zap.Error(err))
		return
	}
	if text == "" {
		return
	}

	now := time.Now()
	s.updater.RecordExchange(personaID, target, text, now)

	msg := chat.NewMessage(channelID, responder.ID, responder.Name, text)
	if err := s.store.Append(msg); err != nil {
		s.logger.Warn("reaction dropped", zap.Error(err))
	}
}

// proactiveStep breaks silences: when the focused channel has been quiet,
// an energetic participant may start a fresh thread.
func (s *Simulator) proactiveStep(now time.Time) {
	channelID := s.store.ActiveChannel()
	if channelID == "" {
		return
	}
	if s.store.IdleSince(channelID, now) < s.tuning.QuietThreshold {
		return
	}

	var energetic []persona.Agent
	for _, a := range s.roster.Eligible(now) {
		if a.Typing || a.Energy <= 0.6 {
			continue
		}
		energetic = append(energetic, a)
	}
	if len(energetic) == 0 || !s.rng.Chance(s.tuning.ProactiveChance) {
		return
	}

	starter := energetic[s.rng.Intn(len(energetic))]
	s.roster.SetTyping(starter.ID, true)

	s.spawn(func() {
		defer s.roster.SetTyping(starter.ID, false)

		text, err := s.generator.GenerateOpener(s.context(), starter)
		if err != nil {
			s.logger.Warn("opener generation failed",
				zap.String("persona", starter.Name), zap.Error(err))
			return
		}
		if text == "" {
			return
		}

		sentAt := time.Now()
		s.roster.Update(starter.ID, func(a *persona.Agent) {
			a.LastSeen = sentAt
			a.Energy = clamp(a.Energy-0.2, 0, 1)
			a.Engagement = clamp(a.Engagement+0.3, 0, 1)
		})

		msg := chat.NewMessage(channelID, starter.ID, starter.Name, text)
		if err := s.store.Append(msg); err != nil {
			s.logger.Warn("opener dropped", zap.Error(err))
			return
		}
		s.TrackTopic(channelID, text, sentAt)
	})
}

// TrackUserMessage reacts the population to an operator message.
func (s *Simulator) TrackUserMessage(authorID, authorName, text string) {
	now := time.Now()
	s.updater.TrackUserMessage(authorID, authorName, text, now)
	s.TrackTopic(s.store.ActiveChannel(), text, now)
}

// TrackTopic updates the rolling topic guess for a channel from a new
// message. Crude word extraction on purpose; the prompt does the rest.
func (s *Simulator) TrackTopic(channelID, text string, now time.Time) {
	if channelID == "" {
		return
	}
	var candidate string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) > 4 {
			candidate = w
			break
		}
	}
	if candidate == "" {
		return
	}

	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	t, ok := s.topics[channelID]
	if !ok {
		t = &channelTopic{}
		s.topics[channelID] = t
	}
	t.topic = candidate
	t.confidence = clamp(t.confidence+0.1, 0, 1)
	t.updated = now
}

// Topic returns the current topic guess for a channel.
func (s *Simulator) Topic(channelID string) (string, float64, bool) {
	s.topicsMu.Lock()
	defer s.topicsMu.Unlock()
	t, ok := s.topics[channelID]
	if !ok {
		return "", 0, false
	}
	return t.topic, t.confidence, true
}

// spawn runs fn on a tracked goroutine so Stop can wait for it. A spawn
// racing a Stop is dropped rather than leaking past wg.Wait.
func (s *Simulator) spawn(fn func()) {
	s.mu.Lock()
	select {
	case <-s.ctx.Done():
		s.mu.Unlock()
		return
	default:
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// sleep waits for d unless the simulator is stopping.
func (s *Simulator) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.context().Done():
		return false
	case <-timer.C:
		return true
	}
}
