//go:build e2e

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/nidhogg/terrarium/internal/bus"
	"github.com/nidhogg/terrarium/internal/chat"
)

func TestMessageStreamRoundTrip(t *testing.T) {
	publisher, err := bus.NewPublisher(testRedisURL, testLogger)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	feed := publisher.Follow(ctx)

	// Follow starts from the stream tail; give the reader a moment to
	// block on XREAD before publishing.
	time.Sleep(500 * time.Millisecond)

	sent := chat.NewMessage("ch-general", "p1", "Nova", "anyone up for co-op tonight?")
	publisher.OnMessage(sent)

	select {
	case got, ok := <-feed:
		if !ok {
			t.Fatal("stream closed before delivery")
		}
		if got.ID != sent.ID {
			t.Errorf("got message %s, want %s", got.ID, sent.ID)
		}
		if got.Text != sent.Text || got.Author != sent.Author {
			t.Errorf("message mangled in transit: %+v", got)
		}
	case <-ctx.Done():
		t.Fatal("no message delivered within deadline")
	}
}

func TestMessageStreamSystemNotices(t *testing.T) {
	publisher, err := bus.NewPublisher(testRedisURL, testLogger)
	if err != nil {
		t.Fatalf("connect publisher: %v", err)
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	feed := publisher.Follow(ctx)
	time.Sleep(500 * time.Millisecond)

	notice := chat.NewSystemMessage("ch-general", "Nova has been warned. (1/3 warnings)")
	publisher.OnMessage(notice)

	select {
	case got := <-feed:
		if !got.System {
			t.Error("system flag lost in transit")
		}
		if got.Author != "System" {
			t.Errorf("author = %q, want System", got.Author)
		}
	case <-ctx.Done():
		t.Fatal("no message delivered within deadline")
	}
}
