package websocket

import (
	"context"

	"benome-realtime/internal/services"
	"benome-realtime/pkg/keylock"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Identity, error)
}

// PresenceTracker receives connection lifecycle and activity signals.
type PresenceTracker interface {
	Connected(ctx context.Context, userID uuid.UUID, clientID string, firstLocal bool) bool
	Disconnected(ctx context.Context, userID uuid.UUID, clientID string, lastLocal bool) bool
	Touch(ctx context.Context, userID uuid.UUID)
	Typing(ctx context.Context, conversationID uuid.UUID, who services.Identity, exceptClientID string, started bool)
}

// SessionRegistry owns the user → connections mapping. Register and
// Unregister for one user are serialised so presence transitions follow the
// order connections come and go.
type SessionRegistry struct {
	hub      *Hub
	auth     Authenticator
	presence PresenceTracker
	locks    *keylock.KeyedMutex
	logger   *WebSocketLogger
}

func NewSessionRegistry(hub *Hub, auth Authenticator, presence PresenceTracker, logger *WebSocketLogger) *SessionRegistry {
	if logger == nil {
		logger = NewWebSocketLogger(zap.NewNop())
	}
	return &SessionRegistry{
		hub:      hub,
		auth:     auth,
		presence: presence,
		locks:    keylock.New(),
		logger:   logger,
	}
}

// Authenticate resolves a handshake credential. Handler.Connect calls it before
// the upgrade and passes the identity to Attach, so a rejected credential
// never reaches the hub.
func (r *SessionRegistry) Authenticate(ctx context.Context, credential string) (services.Identity, error) {
	return r.auth.Authenticate(ctx, credential)
}

// Attach registers a connection for an already authenticated user.
func (r *SessionRegistry) Attach(ctx context.Context, identity services.Identity, conn *websocket.Conn) *Client {
	client := newClient(identity, conn)

	unlock := r.locks.Lock(identity.UserID.String())
	defer unlock()

	first, evicted := r.hub.Register(client)
	r.presence.Connected(ctx, client.UserID, client.ID, first)
	if evicted != nil {
		evicted.closeConn()
		r.presence.Disconnected(ctx, evicted.UserID, evicted.ID, false)
	}

	r.logger.Info("client connected", client.UserID, client.ID)
	return client
}

// Unregister removes client. Calling it twice, or for an evicted client, is a no-op.
func (r *SessionRegistry) Unregister(ctx context.Context, client *Client) {
	unlock := r.locks.Lock(client.UserID.String())
	defer unlock()

	last, removed := r.hub.Unregister(client)
	if !removed {
		return
	}
	r.presence.Disconnected(ctx, client.UserID, client.ID, last)
	r.logger.Info("client disconnected", client.UserID, client.ID)
}

func (r *SessionRegistry) SessionsFor(userID uuid.UUID) []*Client {
	return r.hub.SessionsFor(userID)
}
