package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
	"github.com/nidhogg/terrarium/internal/community"
	"github.com/nidhogg/terrarium/internal/moderation"
	"github.com/nidhogg/terrarium/internal/persona"
	"github.com/nidhogg/terrarium/internal/provider"
)

// fakeSim records calls; the handlers never need a live simulation.
type fakeSim struct {
	started, stopped int
	votes            []string
	dramas           []string
	tracked          []string
}

func (f *fakeSim) Start() { f.started++ }
func (f *fakeSim) Stop()  { f.stopped++ }
func (f *fakeSim) TrackUserMessage(authorID, authorName, text string) {
	f.tracked = append(f.tracked, text)
}
func (f *fakeSim) TrackTopic(channelID, text string, now time.Time)        {}
func (f *fakeSim) Topic(channelID string) (string, float64, bool)          { return "gaming", 0.4, true }
func (f *fakeSim) TriggerWidespreadReaction(announcement, channelID string) {}
func (f *fakeSim) RunVote(question string, options []string, channelID string, duration time.Duration) {
	f.votes = append(f.votes, question)
}
func (f *fakeSim) SimulateDrama(dramaType, topic string) error { return nil }
func (f *fakeSim) ForceReaction(ctx context.Context, personaID, emotion, situation string) error {
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *fakeSim, http.Handler) {
	t.Helper()
	logger := zap.NewNop()

	roster := persona.NewRoster(logger)
	for _, a := range []*persona.Agent{
		{ID: "admin", Name: "Operator", Role: persona.RoleAdmin, Presence: persona.PresenceOnline},
		{ID: "m1", Name: "Nova", Role: persona.RoleMember, Presence: persona.PresenceOnline, ActivityLevel: 0.5},
		{ID: "m2", Name: "Kai", Role: persona.RoleMember, Presence: persona.PresenceOffline, ActivityLevel: 0.5},
	} {
		if err := roster.Add(a); err != nil {
			t.Fatal(err)
		}
	}

	store := chat.NewStore(logger)
	store.AddChannel("General")
	store.AddChannel("Memes")

	sim := &fakeSim{}
	mod := moderation.NewModerator(roster, store, sim, logger)
	feed := community.NewMemoryFeed()
	router := provider.NewRouter(logger)

	h := NewHandler(roster, store, sim, mod, feed, router, logger)
	return h, sim, h.Router()
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func putJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPut, ts.URL+path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	_, _, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestWorldStatus(t *testing.T) {
	_, _, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := getJSON(t, ts, "/api/world/status")
	var body map[string]interface{}
	decodeJSON(t, resp, &body)

	if body["participant_count"].(float64) != 3 {
		t.Errorf("participant_count = %v", body["participant_count"])
	}
	if body["online_count"].(float64) != 2 {
		t.Errorf("online_count = %v", body["online_count"])
	}
	if body["topic"] != "gaming" {
		t.Errorf("topic = %v", body["topic"])
	}
}

func TestSendMessageTracksUser(t *testing.T) {
	h, sim, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	channelID := h.store.ActiveChannel()
	resp := postJSON(t, ts, "/api/channels/"+channelID+"/messages",
		map[string]string{"text": "hey @Nova how is it going"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	if len(sim.tracked) != 1 {
		t.Fatalf("tracked %d messages, want 1", len(sim.tracked))
	}
	if h.store.Len(channelID) != 1 {
		t.Errorf("channel has %d messages, want 1", h.store.Len(channelID))
	}

	resp = postJSON(t, ts, "/api/channels/ch-nope/messages", map[string]string{"text": "x"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown channel status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestModerationEndpoints(t *testing.T) {
	h, _, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/moderation/warn", map[string]string{"name": "Nova"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("warn status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	if a, _ := h.roster.GetByName("Nova"); a.Warnings != 1 {
		t.Errorf("warnings = %d, want 1", a.Warnings)
	}

	resp = postJSON(t, ts, "/api/moderation/warn", map[string]string{"name": "Operator"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("warning the admin: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, ts, "/api/moderation/warn", map[string]string{"name": "Ghost"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("warning a ghost: status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/moderation/actions")
	var actions []moderation.ActionRecord
	decodeJSON(t, resp, &actions)
	if len(actions) != 1 || actions[0].Action != "warn" {
		t.Errorf("unexpected action log: %+v", actions)
	}
}

func TestSettingsUpdate(t *testing.T) {
	h, _, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := putJSON(t, ts, "/api/participants/m1/settings", map[string]interface{}{
		"mood":            "excited",
		"activity_level":  0.9,
		"emoji_user":      true,
		"topic_interests": "gaming, speedruns",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	a, _ := h.roster.Get("m1")
	if a.Mood != "excited" || a.ActivityLevel != 0.9 || !a.EmojiUser {
		t.Errorf("settings not applied: %+v", a)
	}
	if len(a.Interests) != 2 || a.Interests[0].Name != "gaming" {
		t.Errorf("interests not rebuilt: %+v", a.Interests)
	}

	resp = putJSON(t, ts, "/api/participants/admin/settings", map[string]string{"mood": "angry"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("admin settings: status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestBulkSettingsSkipAdmin(t *testing.T) {
	h, _, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := putJSON(t, ts, "/api/participants/settings", map[string]interface{}{"mood": "bored"})
	var body map[string]int
	decodeJSON(t, resp, &body)
	if body["updated"] != 2 {
		t.Errorf("updated = %d, want 2", body["updated"])
	}

	admin, _ := h.roster.Get("admin")
	if admin.Mood == "bored" {
		t.Error("bulk settings touched the admin")
	}
}

func TestVoteEndpoint(t *testing.T) {
	_, sim, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	resp := postJSON(t, ts, "/api/campaigns/vote", map[string]interface{}{
		"question": "pizza or tacos?",
		"options":  []string{"pizza", "tacos"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(sim.votes) != 1 || sim.votes[0] != "pizza or tacos?" {
		t.Errorf("votes = %v", sim.votes)
	}

	resp = postJSON(t, ts, "/api/campaigns/vote", map[string]interface{}{
		"question": "lonely question", "options": []string{"only one"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("single option vote: status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCommunityReportFlow(t *testing.T) {
	h, _, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	ctx := context.Background()
	if err := h.feed.CreatePost(ctx, community.Post{ID: "p1", AuthorID: "m1", Author: "Nova", Title: "hot take"}); err != nil {
		t.Fatal(err)
	}

	resp := postJSON(t, ts, "/api/community/reports", map[string]string{"post_id": "p1", "reason": "spam"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create report status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/community/reports")
	var reports []community.Report
	decodeJSON(t, resp, &reports)
	if len(reports) != 1 || reports[0].Reporter != "Operator" {
		t.Fatalf("unexpected reports: %+v", reports)
	}

	resp = getJSON(t, ts, "/api/community/posts")
	var posts []postView
	decodeJSON(t, resp, &posts)
	if len(posts) != 1 || posts[0].Title != "hot take" {
		t.Errorf("unexpected posts: %+v", posts)
	}
}

func TestSimulationControl(t *testing.T) {
	_, sim, router := newTestHandler(t)
	ts := httptest.NewServer(router)
	defer ts.Close()

	postJSON(t, ts, "/api/simulation/start", nil).Body.Close()
	postJSON(t, ts, "/api/simulation/stop", nil).Body.Close()
	// The moderator shares the fake: only the direct calls count here.
	if sim.started != 1 || sim.stopped != 1 {
		t.Errorf("started=%d stopped=%d", sim.started, sim.stopped)
	}
}
