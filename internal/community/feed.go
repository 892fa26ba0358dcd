package community

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Post is one entry on the community feed.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Comment is a reply attached to a post.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Report flags a post for moderator review.
type Report struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Reporter  string    `json:"reporter"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Feed stores posts and the social signals around them. The engine and the
// API share one Feed; implementations must be safe for concurrent use.
type Feed interface {
	CreatePost(ctx context.Context, p Post) error
	Posts(ctx context.Context) ([]Post, error)
	DeletePost(ctx context.Context, postID string) error

	CreateComment(ctx context.Context, c Comment) error
	Comments(ctx context.Context, postID string) ([]Comment, error)

	// Like records a like; it reports false when the user already liked
	// the post.
	Like(ctx context.Context, postID, userID string) (bool, error)
	Likes(ctx context.Context, postID string) (int, error)

	// Follow records a follow edge; it reports false for duplicates.
	Follow(ctx context.Context, followerID, followingID string) (bool, error)
	Following(ctx context.Context, followerID string) ([]string, error)

	CreateReport(ctx context.Context, r Report) error
	Reports(ctx context.Context) ([]Report, error)
	DismissReport(ctx context.Context, reportID string) error
}

// MemoryFeed is the in-process Feed used when Postgres is not configured.
type MemoryFeed struct {
	mu       sync.RWMutex
	posts    map[string]Post
	comments map[string][]Comment
	likes    map[string]map[string]bool
	follows  map[string]map[string]bool
	reports  map[string]Report
}

// NewMemoryFeed creates an empty in-memory feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{
		posts:    make(map[string]Post),
		comments: make(map[string][]Comment),
		likes:    make(map[string]map[string]bool),
		follows:  make(map[string]map[string]bool),
		reports:  make(map[string]Report),
	}
}

func (f *MemoryFeed) CreatePost(_ context.Context, p Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[p.ID] = p
	return nil
}

func (f *MemoryFeed) Posts(_ context.Context) ([]Post, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	posts := make([]Post, 0, len(f.posts))
	for _, p := range f.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Timestamp.After(posts[j].Timestamp) })
	return posts, nil
}

func (f *MemoryFeed) DeletePost(_ context.Context, postID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[postID]; !ok {
		return fmt.Errorf("unknown post %s", postID)
	}
	delete(f.posts, postID)
	delete(f.comments, postID)
	delete(f.likes, postID)
	return nil
}

func (f *MemoryFeed) CreateComment(_ context.Context, c Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[c.PostID]; !ok {
		return fmt.Errorf("unknown post %s", c.PostID)
	}
	f.comments[c.PostID] = append(f.comments[c.PostID], c)
	return nil
}

func (f *MemoryFeed) Comments(_ context.Context, postID string) ([]Comment, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Comment(nil), f.comments[postID]...), nil
}

func (f *MemoryFeed) Like(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[postID]; !ok {
		return false, fmt.Errorf("unknown post %s", postID)
	}
	if f.likes[postID] == nil {
		f.likes[postID] = make(map[string]bool)
	}
	if f.likes[postID][userID] {
		return false, nil
	}
	f.likes[postID][userID] = true
	return true, nil
}

func (f *MemoryFeed) Likes(_ context.Context, postID string) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.likes[postID]), nil
}

func (f *MemoryFeed) Follow(_ context.Context, followerID, followingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.follows[followerID] == nil {
		f.follows[followerID] = make(map[string]bool)
	}
	if f.follows[followerID][followingID] {
		return false, nil
	}
	f.follows[followerID][followingID] = true
	return true, nil
}

func (f *MemoryFeed) Following(_ context.Context, followerID string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.follows[followerID]))
	for id := range f.follows[followerID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *MemoryFeed) CreateReport(_ context.Context, r Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[r.ID] = r
	return nil
}

func (f *MemoryFeed) Reports(_ context.Context) ([]Report, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	reports := make([]Report, 0, len(f.reports))
	for _, r := range f.reports {
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Timestamp.Before(reports[j].Timestamp) })
	return reports, nil
}

func (f *MemoryFeed) DismissReport(_ context.Context, reportID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.reports[reportID]; !ok {
		return fmt.Errorf("unknown report %s", reportID)
	}
	delete(f.reports, reportID)
	return nil
}
