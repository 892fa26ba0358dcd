package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nidhogg/terrarium/internal/community"
)

// The Postgres-backed community.Feed. Dedup for likes and follows is done
// with unique indexes instead of read-then-write.

func (s *Store) CreatePost(ctx context.Context, p community.Post) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO posts (id, author_id, author, title, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.AuthorID, p.Author, p.Title, p.Content, p.Timestamp)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

func (s *Store) Posts(ctx context.Context) ([]community.Post, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, author_id, author, title, content, created_at
		FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []community.Post
	for rows.Next() {
		var p community.Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.Author, &p.Title, &p.Content, &p.Timestamp); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (s *Store) DeletePost(ctx context.Context, postID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown post %s", postID)
	}
	return nil
}

func (s *Store) CreateComment(ctx context.Context, c community.Comment) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO comments (id, post_id, author_id, author, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.PostID, c.AuthorID, c.Author, c.Text, c.Timestamp)
	if err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

func (s *Store) Comments(ctx context.Context, postID string) ([]community.Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, author_id, author, text, created_at
		FROM comments WHERE post_id = $1 ORDER BY created_at ASC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var comments []community.Comment
	for rows.Next() {
		var c community.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Author, &c.Text, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func (s *Store) Like(ctx context.Context, postID, userID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO likes (post_id, user_id) VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("like post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Likes(ctx context.Context, postID string) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

func (s *Store) Follow(ctx context.Context, followerID, followingID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)
		ON CONFLICT (follower_id, following_id) DO NOTHING`, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("follow: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Following(ctx context.Context, followerID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT following_id FROM follows WHERE follower_id = $1 ORDER BY following_id`, followerID)
	if err != nil {
		return nil, fmt.Errorf("list follows: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan follow: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) CreateReport(ctx context.Context, r community.Report) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO reports (id, post_id, reporter, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.PostID, r.Reporter, r.Reason, r.Timestamp)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

func (s *Store) Reports(ctx context.Context) ([]community.Report, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, reporter, reason, created_at
		FROM reports ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []community.Report
	for rows.Next() {
		var r community.Report
		if err := rows.Scan(&r.ID, &r.PostID, &r.Reporter, &r.Reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *Store) DismissReport(ctx context.Context, reportID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM reports WHERE id = $1`, reportID)
	if err != nil {
		return fmt.Errorf("dismiss report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unknown report %s", reportID)
	}
	return nil
}
