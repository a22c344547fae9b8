package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, ready chan<- struct{}, handler func(channel string, payload []byte)) error
}

// Sink receives envelopes published by other nodes.
type Sink interface {
	Deliver(env Envelope)
}

// RedisRelay mirrors local publishes to Redis and hands foreign ones back to
// the local hub. Envelopes carry the origin node id so a node never delivers
// its own publishes twice.
type RedisRelay struct {
	nodeID     string
	publisher  Publisher
	subscriber Subscriber
	logger     *zap.Logger
}

func NewRedisRelay(nodeID string, publisher Publisher, subscriber Subscriber, logger *zap.Logger) *RedisRelay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisRelay{
		nodeID:     nodeID,
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger.With(zap.String("component", "relay")),
	}
}

func (r *RedisRelay) NodeID() string {
	return r.nodeID
}

// Forward publishes env on the relay channel of its group.
func (r *RedisRelay) Forward(ctx context.Context, env Envelope) error {
	env.Origin = r.nodeID
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return r.publisher.Publish(ctx, RelayChannel(env.Group), data)
}

// Run blocks until ctx is cancelled, delivering foreign envelopes to sink.
func (r *RedisRelay) Run(ctx context.Context, sink Sink, ready chan<- struct{}) error {
	patterns := []string{ChannelPrefixGroup + "*", ChannelBroadcast}
	return r.subscriber.Subscribe(ctx, patterns, ready, func(channel string, payload []byte) {
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			r.logger.Warn("dropping malformed envelope", zap.String("channel", channel), zap.Error(err))
			return
		}
		if env.Origin == r.nodeID {
			return
		}
		sink.Deliver(env)
	})
}
