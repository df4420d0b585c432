// Package notify is the change-feed: row-change events published to redis
// pub/sub and fanned out to connected browser clients over websockets.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/chat"
)

const (
	ChannelOffers = "events:offers"
	ChannelChat   = "events:chat"
)

// Event is the wire shape of one change-feed entry.
type Event struct {
	Type      string          `json:"type"`
	Action    string          `json:"action,omitempty"`
	OrderID   *uuid.UUID      `json:"order_id,omitempty"`
	OfferID   *uuid.UUID      `json:"offer_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher pushes events into redis pub/sub. Every publish is best-effort:
// failures are logged and never surface to the write path that triggered
// them.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(addr, password string, db int) (*Publisher, error) {
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

	return &Publisher{client: rdb}, nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

func (p *Publisher) publish(ctx context.Context, channel string, event Event) {
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("notify: failed to marshal event")
		return
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		log.Warn().Err(err).Str("channel", channel).Msg("notify: failed to publish event")
	}
}

// OfferChanged implements the offer service's EventPublisher.
func (p *Publisher) OfferChanged(ctx context.Context, orderID, offerID uuid.UUID, action string) {
	p.publish(ctx, ChannelOffers, Event{
		Type:    "offer",
		Action:  action,
		OrderID: &orderID,
		OfferID: &offerID,
	})
}

// MessagePosted implements the chat service's EventPublisher.
func (p *Publisher) MessagePosted(ctx context.Context, m chat.Message) {
	payload, err := json.Marshal(m)
	if err != nil {
		log.Error().Err(err).Msg("notify: failed to marshal chat message")
		return
	}

	p.publish(ctx, ChannelChat, Event{
		Type:    "chat",
		Action:  "posted",
		OrderID: m.OrderID,
		Payload: payload,
	})
}
