package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/community"
	"github.com/nidhogg/terrarium/internal/moderation"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// Simulation is the surface of the simulator the API drives.
type Simulation interface {
	Start()
	Stop()
	TrackUserMessage(authorID, authorName, text string)
	TrackTopic(channelID, text string, now time.Time)
	Topic(channelID string) (string, float64, bool)
	TriggerWidespreadReaction(announcement, channelID string)
	RunVote(question string, options []string, channelID string, duration time.Duration)
	SimulateDrama(dramaType, topic string) error
	ForceReaction(ctx context.Context, personaID, emotion, situation string) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	roster *persona.Roster
	store  *chat.Store
	sim    Simulation
	mod    *moderation.Moderator
	feed   community.Feed
	router *provider.Router
	logger *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(
	roster *persona.Roster,
	store *chat.Store,
	sim Simulation,
	mod *moderation.Moderator,
	feed community.Feed,
	router *provider.Router,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		roster: roster,
		store:  store,
		sim:    sim,
		mod:    mod,
		feed:   feed,
		router: router,
		logger: logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Get("/world/status", h.worldStatus)

		r.Get("/participants", h.listParticipants)
		r.Get("/participants/{id}", h.getParticipant)
		r.Put("/participants/{id}/settings", h.updateSettings)
		r.Put("/participants/settings", h.updateAllSettings)

		r.Get("/channels", h.listChannels)
		r.Post("/channels/{id}/activate", h.activateChannel)
		r.Get("/channels/{id}/messages", h.channelMessages)
		r.Post("/channels/{id}/messages", h.sendMessage)
		r.Delete("/channels/{id}/messages", h.clearChannel)

		r.Post("/announcements", h.postAnnouncement)

		r.Route("/moderation", func(r chi.Router) {
			r.Post("/warn", h.warn)
			r.Post("/mute", h.mute)
			r.Post("/ban", h.ban)
			r.Post("/kick", h.kick)
			r.Post("/timeout", h.timeout)
			r.Post("/rank", h.changeRank)
			r.Post("/rename", h.rename)
			r.Get("/actions", h.listActions)
			r.Get("/export", h.exportLogs)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Post("/vote", h.startVote)
			r.Post("/drama", h.startDrama)
			r.Post("/reaction", h.forceReaction)
		})

		r.Post("/simulation/start", h.startSimulation)
		r.Post("/simulation/stop", h.stopSimulation)

		r.Route("/community", func(r chi.Router) {
			r.Get("/posts", h.listPosts)
			r.Delete("/posts/{id}", h.deletePost)
			r.Get("/posts/{id}/comments", h.listComments)
			r.Post("/reports", h.createReport)
			r.Get("/reports", h.listReports)
			r.Delete("/reports/{id}", h.dismissReport)
		})

		r.Get("/providers", h.listProviders)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "world": "terrarium"})
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	channels := h.store.Channels()
	online := 0
	for _, a := range h.roster.All() {
		if a.Presence != persona.PresenceOffline {
			online++
		}
	}
	status := map[string]interface{}{
		"participant_count": h.roster.Len(),
		"online_count":      online,
		"channel_count":     len(channels),
		"active_channel":    h.store.ActiveChannel(),
	}
	if topic, confidence, ok := h.sim.Topic(h.store.ActiveChannel()); ok {
		status["topic"] = topic
		status["topic_confidence"] = confidence
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.roster.All())
}

func (h *Handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	a, ok := h.roster.Get(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "participant not found"})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"channels": h.store.Channels(),
		"active":   h.store.ActiveChannel(),
	})
}

func (h *Handler) activateChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.store.SetActive(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active": h.store.ActiveChannel()})
}

func (h *Handler) channelMessages(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, h.store.Recent(channelID, limit))
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// sendMessage posts a message from the admin into a channel. The population
// notices: mentions register, and the channel topic tracker updates.
func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "id")
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	admin, ok := h.roster.Admin()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no admin account"})
		return
	}

	msg := chat.NewMessage(channelID, admin.ID, admin.Name, req.Text)
	if err := h.store.Append(msg); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	h.sim.TrackUserMessage(admin.ID, admin.Name, req.Text)
	h.sim.TrackTopic(channelID, req.Text, time.Now())
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) clearChannel(w http.ResponseWriter, r *http.Request) {
	if err := h.mod.ClearChannel(chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type announcementRequest struct {
	Text string `json:"text"`
}

func (h *Handler) postAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	h.mod.Announce(req.Text)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "announced"})
}

func (h *Handler) listProviders(w http.ResponseWriter, r *http.Request) {
	type providerInfo struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	infos := []providerInfo{}
	for _, p := range h.router.ListProviders() {
		infos = append(infos, providerInfo{ID: p.ID(), Name: p.Name()})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (h *Handler) startSimulation(w http.ResponseWriter, r *http.Request) {
	h.sim.Start()
	writeJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

func (h *Handler) stopSimulation(w http.ResponseWriter, r *http.Request) {
	h.sim.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
