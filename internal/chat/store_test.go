package chat

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

type recordingListener struct {
	got []Message
}

func (r *recordingListener) OnMessage(msg Message) { r.got = append(r.got, msg) }

func TestAppendAndRecent(t *testing.T) {
	s := NewStore(zap.NewNop())
	ch := s.AddChannel("General")

	for i := 0; i < 20; i++ {
		msg := NewMessage(ch.ID, "a1", "Nova", "hello")
		if err := s.Append(msg); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	if got := s.Len(ch.ID); got != 20 {
		t.Errorf("Len = %d, want 20", got)
	}
	recent := s.Recent(ch.ID, 15)
	if len(recent) != 15 {
		t.Errorf("Recent = %d messages, want 15", len(recent))
	}
}

func TestAppendUnknownChannel(t *testing.T) {
	s := NewStore(zap.NewNop())
	if err := s.Append(NewMessage("ch-nope", "a1", "Nova", "hi")); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestUnreadMarker(t *testing.T) {
	s := NewStore(zap.NewNop())
	general := s.AddChannel("General")
	memes := s.AddChannel("Memes")

	// First channel is active; a message there stays read.
	if err := s.Append(NewMessage(general.ID, "a1", "Nova", "hi")); err != nil {
		t.Fatal(err)
	}
	// A message in a background channel flips unread.
	if err := s.Append(NewMessage(memes.ID, "a1", "Nova", "lol")); err != nil {
		t.Fatal(err)
	}

	channels := s.Channels()
	if channels[0].Unread {
		t.Error("active channel should not be unread")
	}
	if !channels[1].Unread {
		t.Error("background channel should be unread")
	}

	// Switching focus clears the marker.
	if err := s.SetActive(memes.ID); err != nil {
		t.Fatal(err)
	}
	channels = s.Channels()
	if channels[1].Unread {
		t.Error("unread marker should clear on activation")
	}
}

func TestListenerNotified(t *testing.T) {
	s := NewStore(zap.NewNop())
	ch := s.AddChannel("General")
	l := &recordingListener{}
	s.Subscribe(l)

	if err := s.Append(NewMessage(ch.ID, "a1", "Nova", "hey")); err != nil {
		t.Fatal(err)
	}
	if len(l.got) != 1 || l.got[0].Text != "hey" {
		t.Errorf("listener got %v", l.got)
	}
}

func TestIdleSince(t *testing.T) {
	s := NewStore(zap.NewNop())
	ch := s.AddChannel("General")
	now := time.Now()

	if s.IdleSince(ch.ID, now) < time.Hour {
		t.Error("empty channel should read as idle")
	}

	msg := NewMessage(ch.ID, "a1", "Nova", "hi")
	msg.Timestamp = now.Add(-30 * time.Second)
	if err := s.Append(msg); err != nil {
		t.Fatal(err)
	}
	idle := s.IdleSince(ch.ID, now)
	if idle < 29*time.Second || idle > 31*time.Second {
		t.Errorf("idle = %v, want ~30s", idle)
	}
}
