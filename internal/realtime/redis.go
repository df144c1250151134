package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	channelPrefix  = "notifications:"
	ChannelPattern = channelPrefix + "*"
)

// NewRedis creates a Redis client. It does not dial; callers Ping.
func NewRedis(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// RedisNotifier publishes events on notifications:<userID>. Run forwards
// everything published on that pattern to the local hub, so every API
// instance reaches the sockets it holds.
type RedisNotifier struct {
	rdb *redis.Client
	hub *Hub
	log zerolog.Logger
}

func NewRedisNotifier(rdb *redis.Client, hub *Hub, log zerolog.Logger) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, hub: hub, log: log.With().Str("component", "notifier").Logger()}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, eventType string, payload any) error {
	ev, err := NewEvent(eventType, payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	frame, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.rdb.Publish(ctx, Channel(userID), frame).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// Run subscribes to every user channel and blocks until ctx is done.
func (n *RedisNotifier) Run(ctx context.Context) error {
	sub := n.rdb.PSubscribe(ctx, ChannelPattern)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe %s: %w", ChannelPattern, err)
	}
	n.log.Info().Str("pattern", ChannelPattern).Msg("subscribed to notifications")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				n.log.Warn().Str("channel", msg.Channel).Msg("ignoring message on malformed channel")
				continue
			}
			n.hub.Deliver(userID, []byte(msg.Payload))
		}
	}
}
