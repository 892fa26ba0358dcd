package gateway

import (
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
)

// A mirror relays the community's chatter to an outside platform so humans
// can spectate. Mirrors are one-way: nothing posted on the platform feeds
// back into the simulation.
//
// Posting happens on a worker goroutine with a bounded queue. A slow or
// down platform drops messages instead of stalling the chat store.

const queueSize = 256

type poster interface {
	post(msg chat.Message) error
}

type relay struct {
	queue    chan chat.Message
	active   func() string
	platform string
	logger   *zap.Logger
}

func newRelay(platform string, active func() string, logger *zap.Logger) *relay {
	return &relay{
		queue:    make(chan chat.Message, queueSize),
		active:   active,
		platform: platform,
		logger:   logger,
	}
}

// enqueue implements the listener side: only the active channel is mirrored,
// and a full queue drops the message.
func (r *relay) enqueue(msg chat.Message) {
	if msg.ChannelID != r.active() {
		return
	}
	select {
	case r.queue <- msg:
	default:
		r.logger.Warn("mirror queue full, dropping message", zap.String("platform", r.platform))
	}
}

func (r *relay) run(p poster) {
	for msg := range r.queue {
		if err := p.post(msg); err != nil {
			r.logger.Warn("mirror post failed",
				zap.String("platform", r.platform), zap.Error(err))
		}
	}
}

func (r *relay) stop() {
	close(r.queue)
}
