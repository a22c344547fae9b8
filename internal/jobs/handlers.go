package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/services"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type NotificationCreator interface {
	Create(ctx context.Context, in services.NewNotification) (notification.Notification, error)
	CreateBulk(ctx context.Context, in []services.NewNotification) ([]notification.Notification, error)
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
}

type PresenceSweeper interface {
	SweepStale(ctx context.Context, maxAge time.Duration) (int, error)
}

// Handlers processes queued tasks. Input that can never succeed is failed
// with asynq.SkipRetry; storage failures are retried by the queue.
type Handlers struct {
	notifications NotificationCreator
	presence      PresenceSweeper
	logger        *zap.Logger
}

func NewHandlers(notifications NotificationCreator, presence PresenceSweeper, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{notifications: notifications, presence: presence, logger: logger}
}

func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeNotificationCreate, h.HandleCreate)
	mux.HandleFunc(TypeNotificationBulk, h.HandleCreateBulk)
	mux.HandleFunc(TypeNotificationPurge, h.HandlePurge)
	if h.presence != nil {
		mux.HandleFunc(TypePresenceSweep, h.HandleSweep)
	}
}

func permanent(err error) error {
	if errors.Is(err, benome_errors.ErrValidation) || errors.Is(err, benome_errors.ErrNotFound) {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return err
}

func (h *Handlers) HandleCreate(ctx context.Context, t *asynq.Task) error {
	var in services.NewNotification
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%w: decode payload: %v", asynq.SkipRetry, err)
	}
	n, err := h.notifications.Create(ctx, in)
	if err != nil {
		return permanent(err)
	}
	h.logger.Debug("notification created",
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
		zap.String("type", string(n.Type)),
	)
	return nil
}

func (h *Handlers) HandleCreateBulk(ctx context.Context, t *asynq.Task) error {
	var in []services.NewNotification
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%w: decode payload: %v", asynq.SkipRetry, err)
	}
	out, err := h.notifications.CreateBulk(ctx, in)
	if err != nil {
		return permanent(err)
	}
	h.logger.Info("notifications created", zap.Int("count", len(out)))
	return nil
}

func (h *Handlers) HandlePurge(ctx context.Context, t *asynq.Task) error {
	var in PurgePayload
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%w: decode payload: %v", asynq.SkipRetry, err)
	}
	_, err := h.notifications.PurgeOlderThan(ctx, in.RetentionDays)
	return permanent(err)
}

func (h *Handlers) HandleSweep(ctx context.Context, t *asynq.Task) error {
	var in SweepPayload
	if err := json.Unmarshal(t.Payload(), &in); err != nil {
		return fmt.Errorf("%w: decode payload: %v", asynq.SkipRetry, err)
	}
	n, err := h.presence.SweepStale(ctx, time.Duration(in.MaxAgeSeconds)*time.Second)
	if n > 0 {
		h.logger.Info("stale presence swept", zap.Int("users", n))
	}
	return err
}
