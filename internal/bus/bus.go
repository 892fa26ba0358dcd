package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nidhogg/terrarium/internal/chat"
)

const stream = "terrarium:messages"

// Publisher fans every chat message out to a Redis Stream so external
// consumers (dashboards, archivers, analytics) can follow the community
// without touching the process. It plugs into the chat store as a listener.
type Publisher struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewPublisher connects to Redis and verifies the connection with a ping.
func NewPublisher(redisURL string, logger *zap.Logger) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Publisher{rdb: rdb, logger: logger}, nil
}

// OnMessage implements chat.MessageListener. Publish failures are logged and
// dropped; the stream is an observer, never a dependency of the simulation.
func (p *Publisher) OnMessage(msg chat.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Warn("bus marshal failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		p.logger.Warn("bus publish failed", zap.String("channel", msg.ChannelID), zap.Error(err))
	}
}

// Follow tails the message stream, emitting messages until the context is
// canceled. Used by external tooling and the end-to-end tests.
func (p *Publisher) Follow(ctx context.Context) <-chan chat.Message {
	ch := make(chan chat.Message, 16)

	go func() {
		defer close(ch)
		lastID := "$"

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			results, err := p.rdb.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Count:   10,
				Block:   time.Second * 2,
			}).Result()
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				continue
			}

			for _, r := range results {
				for _, entry := range r.Messages {
					lastID = entry.ID
					data, ok := entry.Values["data"].(string)
					if !ok {
						continue
					}
					var msg chat.Message
					if json.Unmarshal([]byte(data), &msg) == nil {
						ch <- msg
					}
				}
			}
		}
	}()

	return ch
}

// Close shuts down the Redis connection.
func (p *Publisher) Close() error {
	return p.rdb.Close()
}
