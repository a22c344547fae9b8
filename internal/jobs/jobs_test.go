package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/events"
	"benome-realtime/internal/services"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: uuid.NewString(), Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeNotifications struct {
	created []services.NewNotification
	bulk    [][]services.NewNotification
	purged  []int
	err     error
}

func (f *fakeNotifications) Create(_ context.Context, in services.NewNotification) (notification.Notification, error) {
	if f.err != nil {
		return notification.Notification{}, f.err
	}
	if err := in.Validate(); err != nil {
		return notification.Notification{}, err
	}
	f.created = append(f.created, in)
	return notification.Notification{ID: uuid.New(), UserID: in.UserID, Type: in.Type}, nil
}

func (f *fakeNotifications) CreateBulk(_ context.Context, in []services.NewNotification) ([]notification.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bulk = append(f.bulk, in)
	return make([]notification.Notification, len(in)), nil
}

func (f *fakeNotifications) PurgeOlderThan(_ context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, benome_errors.Validation("retention must be at least one day")
	}
	f.purged = append(f.purged, days)
	return 3, nil
}

type fakeSweeper struct {
	ages []time.Duration
}

func (f *fakeSweeper) SweepStale(_ context.Context, maxAge time.Duration) (int, error) {
	f.ages = append(f.ages, maxAge)
	return 1, nil
}

func offer(userID uuid.UUID) services.NewNotification {
	return services.NewNotification{
		UserID:  userID,
		Type:    notification.TypeNewOffer,
		Title:   "New offer",
		Content: "You received an offer",
	}
}

func TestProducerValidatesBeforeEnqueue(t *testing.T) {
	q := &fakeEnqueuer{}
	p := &Producer{client: q}

	bad := offer(uuid.New())
	bad.Type = "NEW_FRIEND"
	_, err := p.EnqueueNotification(context.Background(), bad)
	assert.ErrorIs(t, err, benome_errors.ErrValidation)
	_, err = p.EnqueueBulk(context.Background(), []services.NewNotification{offer(uuid.New()), bad})
	assert.ErrorIs(t, err, benome_errors.ErrValidation)
	assert.Empty(t, q.tasks)

	userID := uuid.New()
	id, err := p.EnqueueNotification(context.Background(), offer(userID))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.Len(t, q.tasks, 1)
	assert.Equal(t, TypeNotificationCreate, q.tasks[0].Type())

	var decoded services.NewNotification
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &decoded))
	assert.Equal(t, userID, decoded.UserID)
	assert.Equal(t, notification.TypeNewOffer, decoded.Type)
}

func TestProducerNotifyNewMessage(t *testing.T) {
	q := &fakeEnqueuer{}
	p := &Producer{client: q}
	recipient := uuid.New()
	view := events.MessageView{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Sender:         events.SenderView{FirstName: "Alice"},
	}

	require.NoError(t, p.NotifyNewMessage(context.Background(), recipient, view))
	require.Len(t, q.tasks, 1)

	var decoded services.NewNotification
	require.NoError(t, json.Unmarshal(q.tasks[0].Payload(), &decoded))
	assert.Equal(t, recipient, decoded.UserID)
	assert.Equal(t, notification.TypeNewMessage, decoded.Type)
	assert.Equal(t, "New message from Alice", decoded.Content)
	assert.NotEmpty(t, q.opts[0])
}

func TestHandleCreate(t *testing.T) {
	svc := &fakeNotifications{}
	h := NewHandlers(svc, nil, nil)

	task, err := NewNotificationTask(offer(uuid.New()))
	require.NoError(t, err)
	require.NoError(t, h.HandleCreate(context.Background(), task))
	assert.Len(t, svc.created, 1)
}

func TestHandleCreateSkipsRetryForBadInput(t *testing.T) {
	h := NewHandlers(&fakeNotifications{}, nil, nil)

	err := h.HandleCreate(context.Background(), asynq.NewTask(TypeNotificationCreate, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(services.NewNotification{UserID: uuid.New(), Type: "NOPE", Title: "t", Content: "c"})
	err = h.HandleCreate(context.Background(), asynq.NewTask(TypeNotificationCreate, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleCreateRetriesStorageFailures(t *testing.T) {
	storageErr := benome_errors.Persistence("create notification", errors.New("connection refused"))
	h := NewHandlers(&fakeNotifications{err: storageErr}, nil, nil)

	task, err := NewNotificationTask(offer(uuid.New()))
	require.NoError(t, err)
	err = h.HandleCreate(context.Background(), task)
	assert.ErrorIs(t, err, benome_errors.ErrPersistence)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleBulkPurgeAndSweep(t *testing.T) {
	svc := &fakeNotifications{}
	sweeper := &fakeSweeper{}
	h := NewHandlers(svc, sweeper, nil)
	ctx := context.Background()

	bulk, err := NewBulkNotificationTask([]services.NewNotification{offer(uuid.New()), offer(uuid.New())})
	require.NoError(t, err)
	require.NoError(t, h.HandleCreateBulk(ctx, bulk))
	require.Len(t, svc.bulk, 1)
	assert.Len(t, svc.bulk[0], 2)

	purge, err := NewPurgeTask(30)
	require.NoError(t, err)
	require.NoError(t, h.HandlePurge(ctx, purge))
	assert.Equal(t, []int{30}, svc.purged)

	badPurge, err := NewPurgeTask(0)
	require.NoError(t, err)
	assert.ErrorIs(t, h.HandlePurge(ctx, badPurge), asynq.SkipRetry)

	sweep, err := NewSweepTask(4 * time.Minute)
	require.NoError(t, err)
	require.NoError(t, h.HandleSweep(ctx, sweep))
	assert.Equal(t, []time.Duration{4 * time.Minute}, sweeper.ages)
}
