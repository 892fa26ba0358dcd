package gateway

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
)

type capturePoster struct {
	mu    sync.Mutex
	posts []chat.Message
}

func (p *capturePoster) post(msg chat.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posts = append(p.posts, msg)
	return nil
}

func (p *capturePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.posts)
}

func TestRelayMirrorsOnlyActiveChannel(t *testing.T) {
	r := newRelay("test", func() string { return "ch-general" }, zap.NewNop())
	p := &capturePoster{}
	go r.run(p)
	defer r.stop()

	r.enqueue(chat.NewMessage("ch-general", "a1", "Nova", "hello"))
	r.enqueue(chat.NewMessage("ch-memes", "a2", "Kai", "ignored"))
	r.enqueue(chat.NewMessage("ch-general", "a2", "Kai", "hey"))

	deadline := time.After(2 * time.Second)
	for p.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected 2 mirrored posts, got %d", p.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, msg := range p.posts {
		if msg.ChannelID != "ch-general" {
			t.Errorf("mirrored message from wrong channel: %s", msg.ChannelID)
		}
	}
}

func TestRelayDropsWhenQueueFull(t *testing.T) {
	r := newRelay("test", func() string { return "ch-general" }, zap.NewNop())
	// No worker draining: fill the queue past capacity.
	for i := 0; i < queueSize+10; i++ {
		r.enqueue(chat.NewMessage("ch-general", "a1", "Nova", "spam"))
	}
	if len(r.queue) != queueSize {
		t.Fatalf("queue length = %d, want %d", len(r.queue), queueSize)
	}
}
