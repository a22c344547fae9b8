package services

import (
	"context"
	"testing"
	"time"

	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/events"
	"benome-realtime/internal/repository/mocks"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newNotificationFixture(t *testing.T) (*NotificationService, *mocks.MockNotificationRepository, *recordingBroadcaster) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockNotificationRepository(ctrl)
	b := &recordingBroadcaster{}
	return NewNotificationService(passthroughTx(ctrl), repo, b, nil), repo, b
}

func validNotification(userID uuid.UUID) NewNotification {
	return NewNotification{
		UserID:   userID,
		Type:     notification.TypeNewOffer,
		Title:    "New offer",
		Content:  "Someone made an offer on your listing",
		Link:     "/listings/42",
		Metadata: map[string]any{"offerId": "o-1"},
	}
}

func TestCreateNotificationPushesToUserGroup(t *testing.T) {
	svc, repo, b := newNotificationFixture(t)
	userID := uuid.New()

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n *notification.Notification) error {
			assert.Empty(t, b.all())
			n.CreatedAt = time.Now().UTC()
			return nil
		})

	n, err := svc.Create(context.Background(), validNotification(userID))
	require.NoError(t, err)
	assert.Equal(t, userID, n.UserID)
	assert.Equal(t, "o-1", n.Metadata["offerId"])

	items := b.all()
	require.Len(t, items, 1)
	assert.Equal(t, events.UserGroup(userID), items[0].Group)
	assert.Equal(t, events.NewNotification, items[0].Frame.Event)
	view := decodeData[events.NotificationView](t, items[0])
	assert.Equal(t, n.ID, view.ID)
	assert.Equal(t, "NEW_OFFER", string(view.Type))
}

func TestCreateNotificationRejectsUnknownType(t *testing.T) {
	svc, _, b := newNotificationFixture(t)
	in := validNotification(uuid.New())
	in.Type = "NEW_FRIEND"

	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, benome_errors.ErrValidation)
	assert.Empty(t, b.all())
}

func TestCreateNotificationStoreFailureSkipsPush(t *testing.T) {
	svc, repo, b := newNotificationFixture(t)
	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(stubError("db down"))

	_, err := svc.Create(context.Background(), validNotification(uuid.New()))
	assert.ErrorIs(t, err, benome_errors.ErrPersistence)
	assert.Empty(t, b.all())
}

func TestCreateBulkValidatesEverythingFirst(t *testing.T) {
	svc, _, b := newNotificationFixture(t)
	bad := validNotification(uuid.New())
	bad.Title = ""

	_, err := svc.CreateBulk(context.Background(), []NewNotification{validNotification(uuid.New()), bad})
	assert.ErrorIs(t, err, benome_errors.ErrValidation)
	assert.Empty(t, b.all())
}

func TestCreateBulkPushesOnlyAfterBatchCommits(t *testing.T) {
	svc, repo, b := newNotificationFixture(t)
	first, second := uuid.New(), uuid.New()

	repo.EXPECT().CreateBatch(gomock.Any(), gomock.Len(2)).
		DoAndReturn(func(context.Context, []notification.Notification) error {
			assert.Empty(t, b.all())
			return nil
		})

	out, err := svc.CreateBulk(context.Background(), []NewNotification{validNotification(first), validNotification(second)})
	require.NoError(t, err)
	require.Len(t, out, 2)

	items := b.all()
	require.Len(t, items, 2)
	assert.Equal(t, events.UserGroup(first), items[0].Group)
	assert.Equal(t, events.UserGroup(second), items[1].Group)
	assert.Equal(t, []string{events.NewNotification, events.NewNotification}, b.events())
}

func TestCreateBulkFailureStoresAndPushesNothing(t *testing.T) {
	svc, repo, b := newNotificationFixture(t)
	repo.EXPECT().CreateBatch(gomock.Any(), gomock.Any()).Return(stubError("unique violation"))

	_, err := svc.CreateBulk(context.Background(), []NewNotification{validNotification(uuid.New())})
	assert.ErrorIs(t, err, benome_errors.ErrPersistence)
	assert.Empty(t, b.all())
}

func TestMarkNotificationReadKeepsNotFound(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t)
	id, userID := uuid.New(), uuid.New()
	repo.EXPECT().MarkRead(gomock.Any(), id, userID).
		Return(notification.Notification{}, benome_errors.New(benome_errors.ErrNotFound, "notification not found"))

	_, err := svc.MarkRead(context.Background(), id, userID)
	assert.ErrorIs(t, err, benome_errors.ErrNotFound)
	assert.Equal(t, 404, HTTPStatus(err))
}

func TestListNotificationsPaging(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t)
	userID := uuid.New()
	repo.EXPECT().List(gomock.Any(), userID, 1, 20, true).Return(make([]notification.Notification, 20), int64(41), nil)

	page, err := svc.List(context.Background(), userID, 0, 0, true)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.Limit)
	assert.Equal(t, 3, page.Pages)
	assert.Equal(t, int64(41), page.Total)
}

func TestPurgeOlderThan(t *testing.T) {
	svc, repo, _ := newNotificationFixture(t)

	_, err := svc.PurgeOlderThan(context.Background(), 0)
	assert.ErrorIs(t, err, benome_errors.ErrValidation)

	repo.EXPECT().DeleteOlderThan(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cutoff time.Time) (int64, error) {
			assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), cutoff, time.Minute)
			return 5, nil
		})
	deleted, err := svc.PurgeOlderThan(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(5), deleted)
}

func TestNewMessageNotification(t *testing.T) {
	recipient := uuid.New()
	view := events.MessageView{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Sender:         events.SenderView{FirstName: "Alice"},
	}

	n := NewMessageNotification(recipient, view)
	require.NoError(t, n.Validate())
	assert.Equal(t, notification.TypeNewMessage, n.Type)
	assert.Equal(t, "New Message", n.Title)
	assert.Equal(t, "New message from Alice", n.Content)
	assert.Equal(t, "/messages/"+view.ConversationID.String(), n.Link)
	assert.Equal(t, view.ID.String(), n.Metadata["messageId"])
}
