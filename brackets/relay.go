package brackets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const relayChannelPrefix = "drawing:"

func RelayChannel(divisionID int) string {
	return relayChannelPrefix + strconv.Itoa(divisionID)
}

// Broadcaster is how the drawing orchestrator hands events to spectators.
type Broadcaster interface {
	Publish(ctx context.Context, divisionID int, msg RoomMessage)
}

// RedisRelay fans drawing events out across instances: Publish goes to Redis
// and Run forwards every received message to the local hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	logger *slog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{client: client, hub: hub, logger: logger}
}

// Publish never returns an error. When Redis is unreachable the message is
// dropped everywhere, local rooms included; spectators see the gap in Version.
func (r *RedisRelay) Publish(ctx context.Context, divisionID int, msg RoomMessage) {
	msg.RoomID = DivisionRoom(divisionID)
	b, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("failed to marshal relay message", slog.Int("division_id", divisionID), slog.Any("error", err))
		return
	}
	if err := r.client.Publish(ctx, RelayChannel(divisionID), b).Err(); err != nil {
		r.logger.Warn("redis publish failed, drawing event dropped",
			slog.Int("division_id", divisionID), slog.String("type", msg.Type), slog.Int("version", msg.Version),
			slog.Any("error", fmt.Errorf("%w: %v", ErrConnectionLost, err)))
	}
}

// Run subscribes to every drawing channel until ctx is done, resubscribing
// with backoff when the subscription is lost.
func (r *RedisRelay) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("drawing relay subscription lost",
			slog.Any("error", fmt.Errorf("%w: %v", ErrConnectionLost, err)), slog.Duration("retry_in", backoff))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (r *RedisRelay) consume(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	r.logger.Info("drawing relay subscribed", slog.String("pattern", relayChannelPrefix+"*"))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			divisionID, err := strconv.Atoi(strings.TrimPrefix(m.Channel, relayChannelPrefix))
			if err != nil {
				r.logger.Warn("ignoring relay message on unexpected channel", slog.String("channel", m.Channel))
				continue
			}
			r.hub.enqueue(DivisionRoom(divisionID), []byte(m.Payload))
		}
	}
}
