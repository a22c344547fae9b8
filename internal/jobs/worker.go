package jobs

import (
	"context"
	"fmt"
	"time"

	"benome-realtime/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker runs the task server and the periodic scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *zap.Logger
}

// SweepInterval is how often stale presence is swept; the age threshold is
// twice the interval.
const SweepInterval = 2 * time.Minute

func NewWorker(opt asynq.RedisConnOpt, cfg config.JobsConfig, handlers *Handlers, logger *zap.Logger) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueNotifications: 6,
			"default":          1,
		},
		Logger:   logger.Sugar(),
		LogLevel: asynq.WarnLevel,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error("task failed",
				zap.String("type", task.Type()),
				zap.Int("retry", retried),
				zap.Int("max_retry", maxRetry),
				zap.Error(err),
			)
		}),
	})

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Logger:   logger.Sugar(),
		LogLevel: asynq.WarnLevel,
	})

	purge, err := NewPurgeTask(cfg.RetentionDays)
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.Register(cfg.PurgeSchedule, purge); err != nil {
		return nil, fmt.Errorf("schedule notification purge: %w", err)
	}

	if handlers.presence != nil {
		sweep, err := NewSweepTask(2 * SweepInterval)
		if err != nil {
			return nil, err
		}
		if _, err := scheduler.Register(fmt.Sprintf("@every %s", SweepInterval), sweep); err != nil {
			return nil, fmt.Errorf("schedule presence sweep: %w", err)
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: logger}, nil
}

// Run starts processing and blocks until ctx is cancelled, then shuts down.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start task server: %w", err)
	}
	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	w.logger.Info("job worker started")

	<-ctx.Done()

	w.scheduler.Shutdown()
	w.server.Shutdown()
	w.logger.Info("job worker stopped")
	return nil
}
