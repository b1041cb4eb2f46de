package source

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis pub/sub subscription.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	Channel    string
	BufferSize int
}

// RedisSource receives one JSON event document per published message.
type RedisSource struct {
	*feed
	client *redis.Client
	pubsub *redis.PubSub
}

// NewRedis subscribes to the channel and confirms the subscription before
// returning. The client reconnects on its own after the initial subscribe.
func NewRedis(ctx context.Context, conf RedisConfig) (*RedisSource, error) {
	if conf.Channel == "" {
		return nil, fmt.Errorf("source: redis channel is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	pubsub := client.Subscribe(ctx, conf.Channel)

	confirmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		_ = pubsub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("source: redis subscribe %q: %w", conf.Channel, err)
	}

	f, ctx := newFeed(ctx, "redis", conf.BufferSize)
	s := &RedisSource{feed: f, client: client, pubsub: pubsub}
	f.run(ctx, s.read)
	return s, nil
}

func (s *RedisSource) read(ctx context.Context) {
	defer func() {
		_ = s.pubsub.Close()
		_ = s.client.Close()
	}()
	messages := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if !s.sendLine(ctx, msg.Payload) {
				return
			}
		}
	}
}
