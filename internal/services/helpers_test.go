package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"benome-realtime/internal/events"
	"benome-realtime/internal/redis"
	"benome-realtime/internal/repository/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type published struct {
	Group      string
	ExceptUser uuid.UUID
	ExceptConn string
	Frame      events.Frame
}

// recordingBroadcaster keeps every publish in order.
type recordingBroadcaster struct {
	mu    sync.Mutex
	items []published
}

func (b *recordingBroadcaster) record(p published, payload []byte) int {
	if err := json.Unmarshal(payload, &p.Frame); err != nil {
		panic(err)
	}
	b.mu.Lock()
	b.items = append(b.items, p)
	b.mu.Unlock()
	return 1
}

func (b *recordingBroadcaster) Publish(_ context.Context, group string, payload []byte) int {
	return b.record(published{Group: group}, payload)
}

func (b *recordingBroadcaster) PublishExcept(_ context.Context, group string, payload []byte, exceptClientID string) int {
	return b.record(published{Group: group, ExceptConn: exceptClientID}, payload)
}

func (b *recordingBroadcaster) PublishToAllExcept(_ context.Context, userID uuid.UUID, payload []byte) int {
	return b.record(published{ExceptUser: userID}, payload)
}

func (b *recordingBroadcaster) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.items...)
}

func (b *recordingBroadcaster) events() []string {
	var names []string
	for _, p := range b.all() {
		names = append(names, p.Frame.Event)
	}
	return names
}

func decodeData[T any](t *testing.T, p published) T {
	t.Helper()
	var out T
	require.NoError(t, p.Frame.Decode(&out))
	return out
}

// passthroughTx makes the mocked transactor run fn directly.
func passthroughTx(ctrl *gomock.Controller) *mocks.MockTransactor {
	tx := mocks.NewMockTransactor(ctrl)
	tx.EXPECT().WithinTransaction(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		}).AnyTimes()
	return tx
}

type staticProfiles map[uuid.UUID]redis.CachedProfile

func (p staticProfiles) Get(_ context.Context, userID uuid.UUID) (redis.CachedProfile, error) {
	profile, ok := p[userID]
	if !ok {
		return redis.CachedProfile{}, errNoProfile
	}
	return profile, nil
}

func (p staticProfiles) Resolve(ctx context.Context, userID uuid.UUID) (redis.CachedProfile, error) {
	return p.Get(ctx, userID)
}

type stubError string

func (e stubError) Error() string { return string(e) }

const errNoProfile = stubError("no profile")
