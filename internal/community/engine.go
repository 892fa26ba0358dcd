package community

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
	"github.com/nidhogg/terrarium/internal/sim"
)

// Engine drives the community feed alongside the chat: every tick one
// random participant posts, comments, likes, or follows someone. Runs as a
// clock job, independent of the conversation loops.
type Engine struct {
	roster   *persona.Roster
	router   *provider.Router
	feed     Feed
	model    string
	language string
	rng      *sim.Rand
	logger   *zap.Logger
}

// NewEngine creates the community engine.
func NewEngine(roster *persona.Roster, router *provider.Router, feed Feed, model, language string, rng *sim.Rand, logger *zap.Logger) *Engine {
	return &Engine{
		roster:   roster,
		router:   router,
		feed:     feed,
		model:    model,
		language: language,
		rng:      rng,
		logger:   logger,
	}
}

// Tick performs one community action. LLM failures are logged and the tick
// is skipped; the feed has no fallback content.
func (e *Engine) Tick(now time.Time) {
	bots := e.nonAdmins()
	if len(bots) == 0 {
		return
	}
	bot := bots[e.rng.Intn(len(bots))]

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch roll := e.rng.Float64(); {
	case roll < 0.15:
		e.createPost(ctx, bot, now)
	case roll < 0.6:
		e.commentOnRandomPost(ctx, bot, now)
	case roll < 0.85:
		e.likeRandomPost(ctx, bot)
	default:
		e.followRandomParticipant(ctx, bot)
	}
}

func (e *Engine) nonAdmins() []persona.Agent {
	var bots []persona.Agent
	for _, a := range e.roster.All() {
		if !a.IsAdmin() {
			bots = append(bots, a)
		}
	}
	return bots
}

func (e *Engine) createPost(ctx context.Context, bot persona.Agent, now time.Time) {
	resp, err := e.router.Route(ctx, bot.ID, &provider.ChatRequest{
		Model: e.model,
		Messages: []provider.Message{
			{Role: "system", Content: fmt.Sprintf(
				`You are '%s', a person with this personality: %s. Generate a short, interesting post for a social media feed in %s. Respond in JSON with "title" and "content" fields.`,
				bot.Name, bot.Personality, e.language)},
			{Role: "user", Content: fmt.Sprintf("Create a post in %s.", e.language)},
		},
		JSONMode: true,
	})
	if err != nil {
		e.logger.Warn("community post generation failed", zap.String("author", bot.Name), zap.Error(err))
		return
	}

	var parsed struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil || parsed.Title == "" {
		e.logger.Warn("community post unparseable", zap.String("author", bot.Name), zap.Error(err))
		return
	}

	post := Post{
		AuthorID:  bot.ID,
		Author:    bot.Name,
		Title:     parsed.Title,
		Content:   parsed.Content,
		Timestamp: now,
	}
	if err := e.feed.CreatePost(ctx, post); err != nil {
		e.logger.Warn("community post not stored", zap.Error(err))
		return
	}
	e.logger.Debug("community post created", zap.String("author", bot.Name), zap.String("title", parsed.Title))
}

func (e *Engine) commentOnRandomPost(ctx context.Context, bot persona.Agent, now time.Time) {
	posts, err := e.feed.Posts(ctx)
	if err != nil || len(posts) == 0 {
		return
	}
	post := posts[e.rng.Intn(len(posts))]

	resp, err := e.router.Route(ctx, bot.ID, &provider.ChatRequest{
		Model: e.model,
		Messages: []provider.Message{
			{Role: "system", Content: fmt.Sprintf(
				`You are '%s' (%s). Write a short, realistic comment in %s on this post. Be casual.`,
				bot.Name, bot.Personality, e.language)},
			{Role: "user", Content: fmt.Sprintf("Post by %s: %q", post.Author, post.Title)},
		},
	})
	if err != nil {
		e.logger.Warn("community comment generation failed", zap.String("author", bot.Name), zap.Error(err))
		return
	}

	comment := Comment{
		PostID:    post.ID,
		AuthorID:  bot.ID,
		Author:    bot.Name,
		Text:      resp.Content,
		Timestamp: now,
	}
	if err := e.feed.CreateComment(ctx, comment); err != nil {
		e.logger.Warn("community comment not stored", zap.Error(err))
	}
}

func (e *Engine) likeRandomPost(ctx context.Context, bot persona.Agent) {
	posts, err := e.feed.Posts(ctx)
	if err != nil || len(posts) == 0 {
		return
	}
	post := posts[e.rng.Intn(len(posts))]
	if _, err := e.feed.Like(ctx, post.ID, bot.ID); err != nil {
		e.logger.Warn("community like not stored", zap.Error(err))
	}
}

func (e *Engine) followRandomParticipant(ctx context.Context, bot persona.Agent) {
	all := e.roster.All()
	if len(all) < 2 {
		return
	}
	other := all[e.rng.Intn(len(all))]
	if other.ID == bot.ID {
		return
	}
	if _, err := e.feed.Follow(ctx, bot.ID, other.ID); err != nil {
		e.logger.Warn("community follow not stored", zap.Error(err))
	}
}
