package websocket

import (
	"context"

	"benome-realtime/internal/events"
)

type RelayRunner interface {
	Run(ctx context.Context, sink events.Sink, ready chan<- struct{}) error
}

// RedisBridge feeds envelopes from other nodes into the local hub.
type RedisBridge struct {
	relay RelayRunner
	hub   *Hub
}

func NewRedisBridge(relay RelayRunner, hub *Hub) *RedisBridge {
	return &RedisBridge{relay: relay, hub: hub}
}

// Run blocks until ctx is cancelled. ready is closed once the subscription is live.
func (b *RedisBridge) Run(ctx context.Context, ready chan<- struct{}) error {
	return b.relay.Run(ctx, b.hub, ready)
}
