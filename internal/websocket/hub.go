package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"benome-realtime/internal/events"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Relay forwards local publishes to the other nodes.
type Relay interface {
	Forward(ctx context.Context, env events.Envelope) error
}

// Hub maintains the set of active clients and their groups. Delivery happens
// outside the lock on a snapshot of the members, into each client's queue.
type Hub struct {
	mu sync.RWMutex

	// clients maps user id to that user's connections by client id
	clients map[uuid.UUID]map[string]*Client

	// groups maps a group name to its members by client id
	groups map[string]map[string]*Client

	maxPerUser int
	relay      Relay
	metrics    *fanoutMetrics
	logger     *WebSocketLogger
}

func NewHub(maxPerUser int, logger *WebSocketLogger) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = 10
	}
	if logger == nil {
		logger = NewWebSocketLogger(zap.NewNop())
	}
	return &Hub{
		clients:    make(map[uuid.UUID]map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		maxPerUser: maxPerUser,
		metrics:    newFanoutMetrics(),
		logger:     logger,
	}
}

// SetRelay enables cross-node forwarding. Call before serving traffic.
func (h *Hub) SetRelay(relay Relay) {
	h.relay = relay
}

// Register adds client and joins it to its user group. first reports whether
// it is the user's only connection on this node. When the user is at the
// connection cap the oldest connection is removed and returned as evicted.
func (h *Hub) Register(client *Client) (first bool, evicted *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients := h.clients[client.UserID]
	first = len(userClients) == 0

	if len(userClients) >= h.maxPerUser {
		for _, c := range userClients {
			if evicted == nil || c.connectedAt.Before(evicted.connectedAt) {
				evicted = c
			}
		}
		h.removeLocked(evicted)
		h.logger.Warn("max connections per user reached", client.UserID, client.ID, zap.String("evicted_client_id", evicted.ID))
	}

	if h.clients[client.UserID] == nil {
		h.clients[client.UserID] = make(map[string]*Client)
	}
	h.clients[client.UserID][client.ID] = client
	h.joinLocked(client, events.UserGroup(client.UserID))
	h.metrics.sessions.Add(context.Background(), 1)
	return first, evicted
}

// Unregister removes client from every group. last reports whether the user
// has no connection left on this node; removed is false when client was
// already gone, for example after an eviction.
func (h *Hub) Unregister(client *Client) (last bool, removed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[client.UserID]
	if !ok || userClients[client.ID] != client {
		return false, false
	}
	h.removeLocked(client)
	_, stillThere := h.clients[client.UserID]
	return !stillThere, true
}

func (h *Hub) removeLocked(client *Client) {
	for group := range client.groups {
		h.leaveLocked(client, group)
	}
	if userClients, ok := h.clients[client.UserID]; ok {
		delete(userClients, client.ID)
		if len(userClients) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	client.closeSend()
	h.metrics.sessions.Add(context.Background(), -1)
}

func (h *Hub) joinLocked(client *Client, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[client.ID] = client
	client.groups[group] = struct{}{}
}

func (h *Hub) leaveLocked(client *Client, group string) {
	if members, ok := h.groups[group]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
	delete(client.groups, group)
}

// Join adds a registered client to group. Authorization is the caller's job.
func (h *Hub) Join(client *Client, group string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if userClients := h.clients[client.UserID]; userClients[client.ID] != client {
		return false
	}
	h.joinLocked(client, group)
	return true
}

func (h *Hub) Leave(client *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(client, group)
}

func (h *Hub) InGroup(client *Client, group string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := client.groups[group]
	return ok
}

// SessionsFor returns the user's current connections on this node.
func (h *Hub) SessionsFor(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients[userID]))
	for _, c := range h.clients[userID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, userClients := range h.clients {
		n += len(userClients)
	}
	return n
}

func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) groupSnapshot(group string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := h.groups[group]
	out := make([]*Client, 0, len(members))
	for _, c := range members {
		out = append(out, c)
	}
	return out
}

func (h *Hub) allExceptSnapshot(userID uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*Client
	for uid, userClients := range h.clients {
		if uid == userID {
			continue
		}
		for _, c := range userClients {
			out = append(out, c)
		}
	}
	return out
}

// deliver queues payload to every target. A full or closed queue loses the
// frame for that connection only.
func (h *Hub) deliver(ctx context.Context, group string, targets []*Client, payload []byte) int {
	delivered, dropped := 0, 0
	for _, c := range targets {
		if c.trySend(payload) {
			delivered++
			continue
		}
		dropped++
		h.logger.Warn("frame dropped", c.UserID, c.ID,
			zap.String("group", group),
			zap.Error(benome_errors.ErrDeliveryBestEffort),
		)
	}
	h.metrics.record(ctx, group, delivered, dropped)
	return delivered
}

func (h *Hub) forward(ctx context.Context, env events.Envelope) {
	if h.relay == nil {
		return
	}
	if err := h.relay.Forward(ctx, env); err != nil {
		h.logger.logger.Warn("relay forward failed", zap.String("group", env.Group), zap.Error(err))
	}
}

// Publish sends payload to every member of group, here and on other nodes.
func (h *Hub) Publish(ctx context.Context, group string, payload []byte) int {
	n := h.deliver(ctx, group, h.groupSnapshot(group), payload)
	h.forward(ctx, events.Envelope{Group: group, Payload: json.RawMessage(payload)})
	return n
}

// PublishExcept is Publish skipping one connection.
func (h *Hub) PublishExcept(ctx context.Context, group string, payload []byte, exceptClientID string) int {
	members := h.groupSnapshot(group)
	targets := members[:0]
	for _, c := range members {
		if c.ID != exceptClientID {
			targets = append(targets, c)
		}
	}
	n := h.deliver(ctx, group, targets, payload)
	h.forward(ctx, events.Envelope{Group: group, Payload: json.RawMessage(payload)})
	return n
}

// PublishToAllExcept sends payload to every connection not owned by userID.
func (h *Hub) PublishToAllExcept(ctx context.Context, userID uuid.UUID, payload []byte) int {
	n := h.deliver(ctx, "", h.allExceptSnapshot(userID), payload)
	h.forward(ctx, events.Envelope{ExceptUser: userID.String(), Payload: json.RawMessage(payload)})
	return n
}

// Deliver hands an envelope from another node to local members only.
func (h *Hub) Deliver(env events.Envelope) {
	ctx := context.Background()
	if env.Group != "" {
		h.deliver(ctx, env.Group, h.groupSnapshot(env.Group), env.Payload)
		return
	}
	except, _ := uuid.Parse(env.ExceptUser)
	h.deliver(ctx, "", h.allExceptSnapshot(except), env.Payload)
}

// Close drops every connection. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, userClients := range h.clients {
		for _, c := range userClients {
			all = append(all, c)
		}
	}
	for _, c := range all {
		h.removeLocked(c)
	}
	h.mu.Unlock()

	for _, c := range all {
		c.closeConn()
	}
}
