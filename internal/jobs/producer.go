package jobs

import (
	"context"
	"fmt"
	"time"

	"benome-realtime/config"
	"benome-realtime/internal/events"
	"benome-realtime/internal/services"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Producer lets internal code create notifications through the queue. Requests
// are validated before they are enqueued so bad input fails at the caller.
type Producer struct {
	client enqueuer
}

func RedisConnOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewProducer(opt asynq.RedisConnOpt) *Producer {
	return &Producer{client: asynq.NewClient(opt)}
}

func (p *Producer) EnqueueNotification(ctx context.Context, n services.NewNotification) (string, error) {
	if err := n.Validate(); err != nil {
		return "", err
	}
	task, err := NewNotificationTask(n)
	if err != nil {
		return "", err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue notification: %w", err)
	}
	return info.ID, nil
}

func (p *Producer) EnqueueBulk(ctx context.Context, ns []services.NewNotification) (string, error) {
	for _, n := range ns {
		if err := n.Validate(); err != nil {
			return "", err
		}
	}
	task, err := NewBulkNotificationTask(ns)
	if err != nil {
		return "", err
	}
	info, err := p.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueue notifications: %w", err)
	}
	return info.ID, nil
}

// NotifyNewMessage queues the recipient's NEW_MESSAGE notification. The task id
// is derived from the message id so a message never yields two notifications.
func (p *Producer) NotifyNewMessage(ctx context.Context, recipientID uuid.UUID, msg events.MessageView) error {
	task, err := NewNotificationTask(services.NewMessageNotification(recipientID, msg))
	if err != nil {
		return err
	}
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.TaskID("new-message:"+msg.ID.String()),
		asynq.Retention(time.Hour),
	)
	if err != nil {
		return fmt.Errorf("enqueue new message notification: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.client.Close()
}
