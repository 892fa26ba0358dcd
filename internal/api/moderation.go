package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nidhogg/terrarium/internal/persona"
)

type moderationRequest struct {
	Name            string `json:"name"`
	Reason          string `json:"reason,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Role            string `json:"role,omitempty"`
	NewName         string `json:"new_name,omitempty"`
}

func decodeModeration(w http.ResponseWriter, r *http.Request) (moderationRequest, bool) {
	var req moderationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return req, false
	}
	return req, true
}

func writeModerationResult(w http.ResponseWriter, err error) {
	if err != nil {
		status := http.StatusUnprocessableEntity
		if strings.Contains(err.Error(), "unknown participant") {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) warn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	writeModerationResult(w, h.mod.Warn(req.Name))
}

func (h *Handler) mute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	if req.DurationSeconds <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration_seconds must be positive"})
		return
	}
	writeModerationResult(w, h.mod.Mute(req.Name, time.Duration(req.DurationSeconds)*time.Second))
}

func (h *Handler) ban(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "banned by admin"
	}
	writeModerationResult(w, h.mod.Ban(req.Name, reason))
}

func (h *Handler) kick(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	writeModerationResult(w, h.mod.Kick(req.Name))
}

func (h *Handler) timeout(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	if req.DurationSeconds <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "duration_seconds must be positive"})
		return
	}
	writeModerationResult(w, h.mod.Timeout(req.Name, time.Duration(req.DurationSeconds)*time.Second))
}

func (h *Handler) changeRank(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	if req.Role == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "role is required"})
		return
	}
	writeModerationResult(w, h.mod.ChangeRank(req.Name, persona.Role(req.Role)))
}

func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeModeration(w, r)
	if !ok {
		return
	}
	if req.NewName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "new_name is required"})
		return
	}
	writeModerationResult(w, h.mod.Rename(req.Name, req.NewName, req.Reason))
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mod.Actions())
}

func (h *Handler) exportLogs(w http.ResponseWriter, r *http.Request) {
	data, err := h.mod.ExportLogs()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="chat-logs.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
