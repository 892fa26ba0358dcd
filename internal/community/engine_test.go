package community

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
	"github.com/nidhogg/terrarium/internal/sim"
)

type scriptedProvider struct {
	response string
	fail     bool
}

func (p *scriptedProvider) ID() string   { return "scripted" }
func (p *scriptedProvider) Name() string { return "scripted" }
func (p *scriptedProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	if p.fail {
		return nil, errors.New("provider down")
	}
	return &provider.ChatResponse{Content: p.response}, nil
}
func (p *scriptedProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return nil, nil
}
func (p *scriptedProvider) HealthCheck(ctx context.Context) error { return nil }

func testEngine(t *testing.T, resp string, fail bool) (*Engine, *MemoryFeed, *persona.Roster) {
	t.Helper()
	logger := zap.NewNop()
	roster := persona.NewRoster(logger)
	for _, a := range []*persona.Agent{
		{ID: "admin", Name: "Operator", Role: persona.RoleAdmin},
		{ID: "m1", Name: "Nova", Role: persona.RoleMember, Personality: "chaotic"},
		{ID: "m2", Name: "Kai", Role: persona.RoleMember, Personality: "chill"},
	} {
		if err := roster.Add(a); err != nil {
			t.Fatal(err)
		}
	}

	router := provider.NewRouter(logger)
	router.Register(&scriptedProvider{response: resp, fail: fail})
	router.SetDefault("scripted")

	feed := NewMemoryFeed()
	return NewEngine(roster, router, feed, "test-model", "English", sim.NewRand(7), logger), feed, roster
}

func TestTickEventuallyPosts(t *testing.T) {
	e, feed, _ := testEngine(t, `{"title": "hot take", "content": "pineapple pizza rules"}`, false)

	for i := 0; i < 200; i++ {
		e.Tick(time.Now())
	}
	posts, err := feed.Posts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) == 0 {
		t.Fatal("no posts after 200 ticks")
	}
	p := posts[0]
	if p.Title != "hot take" || p.Author == "Operator" {
		t.Errorf("unexpected post: %+v", p)
	}
}

func TestTickSurvivesProviderFailure(t *testing.T) {
	e, feed, _ := testEngine(t, "", true)

	for i := 0; i < 100; i++ {
		e.Tick(time.Now())
	}
	posts, _ := feed.Posts(context.Background())
	if len(posts) != 0 {
		t.Errorf("posts created despite failing provider: %d", len(posts))
	}
	// Likes and follows need no LLM, so follows still accumulate.
	ctx := context.Background()
	following, _ := e.feed.Following(ctx, "m1")
	following2, _ := e.feed.Following(ctx, "m2")
	if len(following)+len(following2) == 0 {
		t.Error("no follow edges after 100 ticks")
	}
}

func TestLikeDeduplication(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()
	if err := feed.CreatePost(ctx, Post{ID: "p1", Author: "Nova", Title: "x"}); err != nil {
		t.Fatal(err)
	}

	first, err := feed.Like(ctx, "p1", "m2")
	if err != nil || !first {
		t.Fatalf("first like: added=%v err=%v", first, err)
	}
	second, err := feed.Like(ctx, "p1", "m2")
	if err != nil || second {
		t.Fatalf("second like: added=%v err=%v", second, err)
	}
	if n, _ := feed.Likes(ctx, "p1"); n != 1 {
		t.Errorf("like count = %d, want 1", n)
	}
}

func TestFollowNeverSelf(t *testing.T) {
	e, feed, _ := testEngine(t, `{"title": "t", "content": "c"}`, false)

	for i := 0; i < 300; i++ {
		e.Tick(time.Now())
	}
	ctx := context.Background()
	for _, id := range []string{"m1", "m2"} {
		following, _ := feed.Following(ctx, id)
		for _, f := range following {
			if f == id {
				t.Errorf("%s follows themselves", id)
			}
		}
	}
}

func TestReportLifecycle(t *testing.T) {
	feed := NewMemoryFeed()
	ctx := context.Background()

	r := Report{ID: "r1", PostID: "p1", Reporter: "Kai", Reason: "spam", Timestamp: time.Now()}
	if err := feed.CreateReport(ctx, r); err != nil {
		t.Fatal(err)
	}
	reports, _ := feed.Reports(ctx)
	if len(reports) != 1 || reports[0].Reason != "spam" {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if err := feed.DismissReport(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if reports, _ = feed.Reports(ctx); len(reports) != 0 {
		t.Error("report not dismissed")
	}
	if err := feed.DismissReport(ctx, "r1"); err == nil {
		t.Error("dismissing a missing report should fail")
	}
}
