package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"benome-realtime/internal/services"

	"github.com/hibiken/asynq"
)

// Task types handled by the worker.
const (
	TypeNotificationCreate = "notification:create"
	TypeNotificationBulk   = "notification:create_bulk"
	TypeNotificationPurge  = "notification:purge"
	TypePresenceSweep      = "presence:sweep"
)

const QueueNotifications = "notifications"

type PurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

type SweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

func NewNotificationTask(n services.NewNotification) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", TypeNotificationCreate, err)
	}
	return asynq.NewTask(TypeNotificationCreate, payload, asynq.Queue(QueueNotifications), asynq.MaxRetry(5)), nil
}

func NewBulkNotificationTask(ns []services.NewNotification) (*asynq.Task, error) {
	payload, err := json.Marshal(ns)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", TypeNotificationBulk, err)
	}
	return asynq.NewTask(TypeNotificationBulk, payload, asynq.Queue(QueueNotifications), asynq.MaxRetry(5)), nil
}

func NewPurgeTask(retentionDays int) (*asynq.Task, error) {
	payload, err := json.Marshal(PurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", TypeNotificationPurge, err)
	}
	return asynq.NewTask(TypeNotificationPurge, payload, asynq.MaxRetry(1)), nil
}

func NewSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(SweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", TypePresenceSweep, err)
	}
	return asynq.NewTask(TypePresenceSweep, payload, asynq.MaxRetry(0)), nil
}
