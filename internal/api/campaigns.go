package api

import (
	"encoding/json"
	"net/http"
	"time"
)

type voteRequest struct {
	Question        string   `json:"question"`
	Options         []string `json:"options"`
	DurationSeconds int      `json:"duration_seconds"`
}

func (h *Handler) startVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Question == "" || len(req.Options) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question and at least two options are required"})
		return
	}
	duration := 60 * time.Second
	if req.DurationSeconds > 0 {
		duration = time.Duration(req.DurationSeconds) * time.Second
	}

	h.sim.RunVote(req.Question, req.Options, h.store.ActiveChannel(), duration)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "vote started"})
}

type dramaRequest struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

func (h *Handler) startDrama(w http.ResponseWriter, r *http.Request) {
	var req dramaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
		return
	}
	if err := h.sim.SimulateDrama(req.Type, req.Topic); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "drama started"})
}

type reactionRequest struct {
	Name    string `json:"name"`
	Emotion string `json:"emotion"`
	Context string `json:"context"`
}

func (h *Handler) forceReaction(w http.ResponseWriter, r *http.Request) {
	var req reactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.Emotion == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and emotion are required"})
		return
	}

	a, ok := h.roster.GetByName(req.Name)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "participant not found"})
		return
	}
	if err := h.sim.ForceReaction(r.Context(), a.ID, req.Emotion, req.Context); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reacted"})
}
