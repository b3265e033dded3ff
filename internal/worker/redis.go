package worker

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"copydesk/internal/redis"
)

const redisInvalidateChannel = "copydesk:worker:invalidate"

type invalidateMessage struct {
	Scope  string `json:"scope"`
	Reason string `json:"reason"`
	Origin string `json:"origin"`
}

// InvalidationBus carries invalidations between instances. A nil *InvalidationBus is
// a valid no-op bus.
type InvalidationBus struct {
	client *redis.Client
	origin string
	log    zerolog.Logger
}

// NewInvalidationBus builds a bus on client.
func NewInvalidationBus(client *redis.Client, log zerolog.Logger) *InvalidationBus {
	return &InvalidationBus{
		client: client,
		origin: uuid.NewString(),
		log:    log.With().Str("component", "invalidation_bus").Logger(),
	}
}

// startListener subscribes in the background and hands foreign messages to
// handler until ctx is done.
func (r *InvalidationBus) startListener(ctx context.Context, handler func(invalidateMessage)) {
	if r == nil || r.client == nil || handler == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	pubsub := raw.Subscribe(ctx, redisInvalidateChannel)
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidateMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					r.log.Warn().Err(err).Msg("invalidation decode failed")
					continue
				}
				if inv.Origin == r.origin {
					continue
				}
				handler(inv)
			}
		}
	}()
}

// publishInvalidation broadcasts msg stamped with this instance's origin.
func (r *InvalidationBus) publishInvalidation(msg invalidateMessage) {
	if r == nil || r.client == nil {
		return
	}
	raw := r.client.Raw()
	if raw == nil {
		return
	}
	msg.Origin = r.origin
	payload, err := json.Marshal(msg)
	if err != nil {
		r.log.Warn().Err(err).Msg("invalidation marshal failed")
		return
	}
	if err := raw.Publish(context.Background(), redisInvalidateChannel, payload).Err(); err != nil {
		r.log.Warn().Err(err).Msg("publish invalidation failed")
	}
}
