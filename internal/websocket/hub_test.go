package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"benome-realtime/internal/events"
	"benome-realtime/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(userID uuid.UUID) *Client {
	return newClient(services.Identity{UserID: userID, FirstName: "Test"}, nil)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHubRegisterFirstAndLast(t *testing.T) {
	hub := NewHub(10, nil)
	userID := uuid.New()
	a, b := testClient(userID), testClient(userID)

	first, evicted := hub.Register(a)
	assert.True(t, first)
	assert.Nil(t, evicted)

	first, _ = hub.Register(b)
	assert.False(t, first)
	assert.Len(t, hub.SessionsFor(userID), 2)
	assert.Equal(t, 2, hub.GroupSize(events.UserGroup(userID)))

	last, removed := hub.Unregister(a)
	assert.True(t, removed)
	assert.False(t, last)

	last, removed = hub.Unregister(b)
	assert.True(t, removed)
	assert.True(t, last)
	assert.Empty(t, hub.SessionsFor(userID))
	assert.Zero(t, hub.GroupSize(events.UserGroup(userID)))

	// second unregister is a no-op
	_, removed = hub.Unregister(b)
	assert.False(t, removed)
}

func TestHubEvictsOldestAtCap(t *testing.T) {
	hub := NewHub(2, nil)
	userID := uuid.New()

	oldest := testClient(userID)
	oldest.connectedAt = time.Now().Add(-time.Hour)
	hub.Register(oldest)
	hub.Register(testClient(userID))

	newest := testClient(userID)
	first, evicted := hub.Register(newest)
	assert.False(t, first)
	require.NotNil(t, evicted)
	assert.Equal(t, oldest.ID, evicted.ID)
	assert.Len(t, hub.SessionsFor(userID), 2)
	assert.False(t, oldest.trySend([]byte("x")), "evicted client queue is closed")
}

func TestHubEvictionWithSingleSlot(t *testing.T) {
	hub := NewHub(1, nil)
	userID := uuid.New()
	a, b := testClient(userID), testClient(userID)

	hub.Register(a)
	first, evicted := hub.Register(b)
	assert.False(t, first, "the user never went offline")
	assert.Equal(t, a, evicted)
	assert.Equal(t, []*Client{b}, hub.SessionsFor(userID))
}

func TestHubPublishToGroups(t *testing.T) {
	hub := NewHub(10, nil)
	alice, bob, carol := testClient(uuid.New()), testClient(uuid.New()), testClient(uuid.New())
	for _, c := range []*Client{alice, bob, carol} {
		hub.Register(c)
	}
	group := events.ConversationGroup(uuid.New())
	require.True(t, hub.Join(alice, group))
	require.True(t, hub.Join(bob, group))
	assert.True(t, hub.InGroup(alice, group))
	assert.False(t, hub.InGroup(carol, group))

	ctx := context.Background()
	assert.Equal(t, 2, hub.Publish(ctx, group, []byte("m1")))
	assert.Equal(t, 1, hub.PublishExcept(ctx, group, []byte("typing"), alice.ID))
	assert.Equal(t, 2, hub.PublishToAllExcept(ctx, alice.UserID, []byte("online")))
	assert.Equal(t, 1, hub.Publish(ctx, events.UserGroup(carol.UserID), []byte("note")))

	assert.Equal(t, []string{"m1"}, asStrings(drain(alice)))
	assert.Equal(t, []string{"m1", "typing", "online"}, asStrings(drain(bob)))
	assert.Equal(t, []string{"online", "note"}, asStrings(drain(carol)))

	hub.Leave(bob, group)
	assert.Equal(t, 1, hub.Publish(ctx, group, []byte("m2")))
	assert.Empty(t, drain(bob))
}

func TestHubJoinRequiresRegistration(t *testing.T) {
	hub := NewHub(10, nil)
	c := testClient(uuid.New())
	assert.False(t, hub.Join(c, events.ConversationGroup(uuid.New())))
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(10, nil)
	slow, fast := testClient(uuid.New()), testClient(uuid.New())
	hub.Register(slow)
	hub.Register(fast)
	group := events.ConversationGroup(uuid.New())
	hub.Join(slow, group)
	hub.Join(fast, group)

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, slow.trySend([]byte("backlog")))
	}

	assert.Equal(t, 1, hub.Publish(context.Background(), group, []byte("m")))
	assert.Equal(t, []string{"m"}, asStrings(drain(fast)))
	assert.Len(t, drain(slow), sendBufferSize)
}

func TestHubPreservesPublishOrderPerClient(t *testing.T) {
	hub := NewHub(10, nil)
	c := testClient(uuid.New())
	hub.Register(c)
	group := events.UserGroup(c.UserID)

	for i := 0; i < 100; i++ {
		hub.Publish(context.Background(), group, []byte{byte(i)})
	}
	got := drain(c)
	require.Len(t, got, 100)
	for i, msg := range got {
		assert.Equal(t, byte(i), msg[0])
	}
}

type recordingRelay struct {
	mu  sync.Mutex
	out []events.Envelope
}

func (r *recordingRelay) Forward(_ context.Context, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, env)
	return nil
}

func TestHubForwardsAndDeliversRelayedFrames(t *testing.T) {
	hub := NewHub(10, nil)
	relay := &recordingRelay{}
	hub.SetRelay(relay)

	local := testClient(uuid.New())
	hub.Register(local)
	group := events.ConversationGroup(uuid.New())
	hub.Join(local, group)

	hub.Publish(context.Background(), group, []byte(`{"event":"new_message"}`))
	hub.PublishToAllExcept(context.Background(), local.UserID, []byte(`{"event":"user_online"}`))
	require.Len(t, relay.out, 2)
	assert.Equal(t, group, relay.out[0].Group)
	assert.Equal(t, local.UserID.String(), relay.out[1].ExceptUser)
	drain(local)

	// frames from another node reach local members without being forwarded again
	hub.Deliver(events.Envelope{Origin: "node-b", Group: group, Payload: json.RawMessage(`{"event":"remote"}`)})
	hub.Deliver(events.Envelope{Origin: "node-b", ExceptUser: local.UserID.String(), Payload: json.RawMessage(`{"event":"skip"}`)})
	hub.Deliver(events.Envelope{Origin: "node-b", ExceptUser: uuid.NewString(), Payload: json.RawMessage(`{"event":"all"}`)})

	assert.Equal(t, []string{`{"event":"remote"}`, `{"event":"all"}`}, asStrings(drain(local)))
	assert.Len(t, relay.out, 2)
}

func asStrings(msgs [][]byte) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, string(m))
	}
	return out
}

func TestClientRateLimiter(t *testing.T) {
	rl := NewClientRateLimiter(RateLimits{MaxTypingEvents: 2, MaxJoinEvents: 1, MaxPingMessages: 1})
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.refill(now)

	assert.True(t, rl.Allow(events.TypingStart))
	assert.True(t, rl.Allow(events.TypingStop))
	assert.False(t, rl.Allow(events.TypingStart))
	assert.True(t, rl.Allow(events.Ping))
	assert.False(t, rl.Allow(events.Ping))
	assert.True(t, rl.Allow(events.SendMessage), "sends are limited elsewhere")

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow(events.TypingStart))
	assert.True(t, rl.Allow(events.Ping))
}
