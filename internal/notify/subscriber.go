package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Subscriber bridges redis pub/sub into the websocket hub.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
}

func NewSubscriber(addr, password string, db int) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Subscriber{client: rdb}, nil
}

// Run subscribes to every event channel and forwards payloads to the hub
// until the context is cancelled. Blocking; run in a goroutine.
func (s *Subscriber) Run(ctx context.Context, hub *Hub) error {
	s.pubsub = s.client.PSubscribe(ctx, "events:*")
	ch := s.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			log.Debug().Str("channel", msg.Channel).Msg("notify: forwarding event")
			hub.Broadcast([]byte(msg.Payload))
		}
	}
}

func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		_ = s.pubsub.Close()
	}
	return s.client.Close()
}
