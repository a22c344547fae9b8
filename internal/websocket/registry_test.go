package websocket

import (
	"context"
	"sync"
	"testing"

	"benome-realtime/internal/events"
	"benome-realtime/internal/services"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth map[string]services.Identity

func (a fakeAuth) Authenticate(_ context.Context, token string) (services.Identity, error) {
	id, ok := a[token]
	if !ok {
		return services.Identity{}, benome_errors.Authentication(nil)
	}
	return id, nil
}

// transitionRecorder mirrors the presence tracker's local decisions.
type transitionRecorder struct {
	mu          sync.Mutex
	transitions []string
	typing      []string
	touches     int
}

func (p *transitionRecorder) Connected(_ context.Context, _ uuid.UUID, _ string, firstLocal bool) bool {
	if firstLocal {
		p.mu.Lock()
		p.transitions = append(p.transitions, events.UserOnline)
		p.mu.Unlock()
	}
	return firstLocal
}

func (p *transitionRecorder) Disconnected(_ context.Context, _ uuid.UUID, _ string, lastLocal bool) bool {
	if lastLocal {
		p.mu.Lock()
		p.transitions = append(p.transitions, events.UserOffline)
		p.mu.Unlock()
	}
	return lastLocal
}

func (p *transitionRecorder) Touch(context.Context, uuid.UUID) {
	p.mu.Lock()
	p.touches++
	p.mu.Unlock()
}

func (p *transitionRecorder) Typing(_ context.Context, _ uuid.UUID, who services.Identity, _ string, started bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if started {
		p.typing = append(p.typing, "start:"+who.FirstName)
	} else {
		p.typing = append(p.typing, "stop:"+who.FirstName)
	}
}

func (p *transitionRecorder) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.transitions...)
}

func TestRegistryRejectsBadCredential(t *testing.T) {
	presence := &transitionRecorder{}
	reg := NewSessionRegistry(NewHub(10, nil), fakeAuth{}, presence, nil)

	_, err := reg.Authenticate(context.Background(), "nope")
	assert.ErrorIs(t, err, benome_errors.ErrAuthentication)
	assert.Empty(t, presence.snapshot())
	assert.Zero(t, reg.hub.ClientCount())
}

func TestRegistrySessionSetMatchesPresence(t *testing.T) {
	userID := uuid.New()
	presence := &transitionRecorder{}
	reg := NewSessionRegistry(NewHub(10, nil), fakeAuth{"tok": {UserID: userID}}, presence, nil)
	ctx := context.Background()

	identity, err := reg.Authenticate(ctx, "tok")
	require.NoError(t, err)
	a := reg.Attach(ctx, identity, nil)
	b := reg.Attach(ctx, identity, nil)
	assert.Len(t, reg.SessionsFor(userID), 2)

	reg.Unregister(ctx, a)
	assert.Equal(t, []string{events.UserOnline}, presence.snapshot())

	reg.Unregister(ctx, b)
	reg.Unregister(ctx, b)
	assert.Empty(t, reg.SessionsFor(userID))
	assert.Equal(t, []string{events.UserOnline, events.UserOffline}, presence.snapshot())
}

func TestRegistryEvictionKeepsUserOnline(t *testing.T) {
	userID := uuid.New()
	presence := &transitionRecorder{}
	reg := NewSessionRegistry(NewHub(1, nil), fakeAuth{"tok": {UserID: userID}}, presence, nil)
	ctx := context.Background()

	old := reg.Attach(ctx, services.Identity{UserID: userID}, nil)
	fresh := reg.Attach(ctx, services.Identity{UserID: userID}, nil)

	// the evicted connection's read loop ends later and unregisters
	reg.Unregister(ctx, old)
	assert.Equal(t, []*Client{fresh}, reg.SessionsFor(userID))
	assert.Equal(t, []string{events.UserOnline}, presence.snapshot())
}

func TestRegistryConcurrentConnectsYieldOneTransitionEach(t *testing.T) {
	userID := uuid.New()
	presence := &transitionRecorder{}
	reg := NewSessionRegistry(NewHub(100, nil), fakeAuth{}, presence, nil)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		clients := make([]*Client, 8)
		for i := range clients {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				clients[i] = reg.Attach(ctx, services.Identity{UserID: userID}, nil)
			}(i)
		}
		wg.Wait()

		for _, c := range clients {
			wg.Add(1)
			go func(c *Client) {
				defer wg.Done()
				reg.Unregister(ctx, c)
			}(c)
		}
		wg.Wait()
	}

	got := presence.snapshot()
	require.Len(t, got, 40)
	for i, transition := range got {
		if i%2 == 0 {
			assert.Equal(t, events.UserOnline, transition)
		} else {
			assert.Equal(t, events.UserOffline, transition)
		}
	}
	assert.Empty(t, reg.SessionsFor(userID))
}
