package services

import (
	"context"

	"benome-realtime/internal/events"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster delivers encoded frames to group members. Delivery is best
// effort: the returned count is the number of local connections reached.
type Broadcaster interface {
	Publish(ctx context.Context, group string, payload []byte) int
	PublishExcept(ctx context.Context, group string, payload []byte, exceptClientID string) int
	PublishToAllExcept(ctx context.Context, userID uuid.UUID, payload []byte) int
}

func publishEvent(ctx context.Context, b Broadcaster, logger *zap.Logger, group, event string, data any) {
	payload, err := events.Encode(event, data)
	if err != nil {
		logger.Error("failed to encode event", zap.String("event", event), zap.Error(err))
		return
	}
	b.Publish(ctx, group, payload)
}
