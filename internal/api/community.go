package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nidhogg/terrarium/internal/community"
)

// postView is a feed post enriched with its social counts.
type postView struct {
	community.Post
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.feed.Posts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		likes, _ := h.feed.Likes(r.Context(), p.ID)
		comments, _ := h.feed.Comments(r.Context(), p.ID)
		views = append(views, postView{Post: p, Likes: likes, Comments: len(comments)})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.feed.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

type reportRequest struct {
	PostID string `json:"post_id"`
	Reason string `json:"reason"`
}

func (h *Handler) createReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PostID == "" || req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "post_id and reason are required"})
		return
	}

	reporter := "Admin"
	if admin, ok := h.roster.Admin(); ok {
		reporter = admin.Name
	}
	report := community.Report{
		PostID:    req.PostID,
		Reporter:  reporter,
		Reason:    req.Reason,
		Timestamp: time.Now(),
	}
	if err := h.feed.CreateReport(r.Context(), report); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.feed.Reports(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handler) dismissReport(w http.ResponseWriter, r *http.Request) {
	if err := h.feed.DismissReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
