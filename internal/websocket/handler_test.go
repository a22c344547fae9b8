package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"benome-realtime/internal/events"
	"benome-realtime/internal/repository/mocks"
	"benome-realtime/internal/services"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticMembership map[uuid.UUID][]uuid.UUID

func (m staticMembership) IsParticipant(_ context.Context, userID, conversationID uuid.UUID) bool {
	for _, id := range m[conversationID] {
		if id == userID {
			return true
		}
	}
	return false
}

// hubSender stands in for the message pipeline: it checks membership and
// publishes to the conversation group.
type hubSender struct {
	hub        *Hub
	membership services.Membership
}

func (s *hubSender) SendMessage(ctx context.Context, in services.SendMessageInput) (events.MessageView, error) {
	if !s.membership.IsParticipant(ctx, in.SenderID, in.ConversationID) {
		return events.MessageView{}, benome_errors.NotAuthorized("not a participant of this conversation")
	}
	view := events.MessageView{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		CreatedAt:      time.Now().UTC(),
	}
	payload, err := events.Encode(events.NewMessage, view)
	if err != nil {
		return events.MessageView{}, err
	}
	s.hub.Publish(ctx, events.ConversationGroup(in.ConversationID), payload)
	return view, nil
}

type wsFixture struct {
	server *httptest.Server
	conv   uuid.UUID
	alice  services.Identity
	bob    services.Identity
	carol  services.Identity
	hub    *Hub
}

func newWSFixture(t *testing.T) *wsFixture {
	gin.SetMode(gin.TestMode)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserRepository(ctrl)
	users.EXPECT().SetOnlineStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	f := &wsFixture{
		conv:  uuid.New(),
		alice: services.Identity{UserID: uuid.New(), FirstName: "Alice"},
		bob:   services.Identity{UserID: uuid.New(), FirstName: "Bob"},
		carol: services.Identity{UserID: uuid.New(), FirstName: "Carol"},
	}
	membership := staticMembership{f.conv: {f.alice.UserID, f.bob.UserID}}

	f.hub = NewHub(10, nil)
	presence := services.NewPresenceService(users, nil, f.hub, "node-a", nil)
	auth := fakeAuth{"alice": f.alice, "bob": f.bob, "carol": f.carol}
	registry := NewSessionRegistry(f.hub, auth, presence, nil)
	handler := NewHandler(registry, f.hub, NewGroupAuthorizer(membership), &hubSender{hub: f.hub, membership: membership}, presence, nil)

	r := gin.New()
	r.GET("/ws", handler.Connect)
	f.server = httptest.NewServer(r)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) url(token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
}

// dial connects and waits for a pong so the session is registered on return.
func (f *wsFixture) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url(token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	send(t, conn, events.Ping, nil)
	readUntil(t, conn, events.Pong)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	payload, err := events.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

// readUntil returns every frame up to and including the first one named event.
func readUntil(t *testing.T, conn *websocket.Conn, event string) []events.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frames []events.Frame
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", event)
		var frame events.Frame
		require.NoError(t, json.Unmarshal(raw, &frame))
		frames = append(frames, frame)
		if frame.Event == event {
			return frames
		}
	}
}

// sync pings and returns every frame received before the pong.
func syncFrames(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	send(t, conn, events.Ping, nil)
	frames := readUntil(t, conn, events.Pong)
	names := make([]string, 0, len(frames)-1)
	for _, fr := range frames[:len(frames)-1] {
		names = append(names, fr.Event)
	}
	return names
}

func TestConnectRejectsMissingOrBadToken(t *testing.T) {
	f := newWSFixture(t)

	for _, token := range []string{"", "mallory"} {
		_, resp, err := websocket.DefaultDialer.Dial(f.url(token), nil)
		assert.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	assert.Zero(t, f.hub.ClientCount())
}

func TestConnectWithBearerHeader(t *testing.T) {
	f := newWSFixture(t)
	header := http.Header{"Authorization": []string{"Bearer bob"}}
	conn, _, err := websocket.DefaultDialer.Dial(strings.Split(f.url(""), "?")[0], header)
	require.NoError(t, err)
	defer conn.Close()

	send(t, conn, events.Ping, nil)
	readUntil(t, conn, events.Pong)
	assert.Len(t, f.hub.SessionsFor(f.bob.UserID), 1)
}

func TestConversationRoundTrip(t *testing.T) {
	f := newWSFixture(t)

	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	carol := f.dial(t, "carol")

	online := readUntil(t, alice, events.UserOnline)
	var who events.PresencePayload
	require.NoError(t, online[len(online)-1].Decode(&who))
	assert.Equal(t, f.bob.UserID, who.UserID)

	ref := events.ConversationRef{ConversationID: f.conv}
	send(t, alice, events.JoinConversation, ref)
	send(t, bob, events.JoinConversation, ref)
	send(t, carol, events.JoinConversation, ref)
	syncFrames(t, alice)
	syncFrames(t, bob)
	syncFrames(t, carol)
	assert.Equal(t, 2, f.hub.GroupSize(events.ConversationGroup(f.conv)))

	send(t, alice, events.SendMessage, events.SendMessagePayload{
		ConversationID: f.conv,
		Content:        "is the bike still available?",
		ClientRef:      "tmp-1",
	})

	frames := readUntil(t, alice, events.MessageSent)
	var ack events.MessageSentPayload
	require.NoError(t, frames[len(frames)-1].Decode(&ack))
	assert.Equal(t, "tmp-1", ack.ClientRef)
	assert.Equal(t, "is the bike still available?", ack.Message.Content)

	frames = readUntil(t, bob, events.NewMessage)
	var got events.MessageView
	require.NoError(t, frames[len(frames)-1].Decode(&got))
	assert.Equal(t, ack.Message.ID, got.ID)

	send(t, alice, events.TypingStart, ref)
	frames = readUntil(t, bob, events.UserTyping)
	var typing events.TypingPayload
	require.NoError(t, frames[len(frames)-1].Decode(&typing))
	assert.Equal(t, "Alice", typing.FirstName)
	assert.NotContains(t, syncFrames(t, alice), events.UserTyping)

	// carol never joined, so her typing goes nowhere and she saw nothing
	send(t, carol, events.TypingStart, ref)
	carolSaw := syncFrames(t, carol)
	assert.NotContains(t, carolSaw, events.NewMessage)
	assert.NotContains(t, carolSaw, events.UserTyping)
	assert.NotContains(t, syncFrames(t, bob), events.UserTyping)
}

func TestSendFromNonParticipantGetsErrorFrame(t *testing.T) {
	f := newWSFixture(t)
	carol := f.dial(t, "carol")

	send(t, carol, events.SendMessage, events.SendMessagePayload{ConversationID: f.conv, Content: "hi"})
	frames := readUntil(t, carol, events.Error)
	var payload events.ErrorPayload
	require.NoError(t, frames[len(frames)-1].Decode(&payload))
	assert.Equal(t, "NOT_AUTHORIZED", payload.Code)
}

func TestMalformedFrameGetsValidationError(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "alice")

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("{not json")))
	frames := readUntil(t, alice, events.Error)
	var payload events.ErrorPayload
	require.NoError(t, frames[len(frames)-1].Decode(&payload))
	assert.Equal(t, "VALIDATION_ERROR", payload.Code)
}

func TestDisconnectAnnouncesOffline(t *testing.T) {
	f := newWSFixture(t)
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	readUntil(t, alice, events.UserOnline)

	require.NoError(t, bob.Close())
	frames := readUntil(t, alice, events.UserOffline)
	var who events.PresencePayload
	require.NoError(t, frames[len(frames)-1].Decode(&who))
	assert.Equal(t, f.bob.UserID, who.UserID)
	assert.Empty(t, f.hub.SessionsFor(f.bob.UserID))
}
