package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"benome-realtime/internal/events"
	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type MessageSender interface {
	SendMessage(ctx context.Context, in services.SendMessageInput) (events.MessageView, error)
}

type Handler struct {
	registry   *SessionRegistry
	hub        *Hub
	authorizer *GroupAuthorizer
	messages   MessageSender
	presence   PresenceTracker
	logger     *WebSocketLogger
	upgrader   websocket.Upgrader
}

func NewHandler(registry *SessionRegistry, hub *Hub, authorizer *GroupAuthorizer, messages MessageSender, presence PresenceTracker, logger *WebSocketLogger) *Handler {
	if logger == nil {
		logger = NewWebSocketLogger(zap.NewNop())
	}
	return &Handler{
		registry:   registry,
		hub:        hub,
		authorizer: authorizer,
		messages:   messages,
		presence:   presence,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Connect authenticates the handshake, upgrades it and serves the connection
// until it closes.
func (h *Handler) Connect(c *gin.Context) {
	identity, err := h.registry.Authenticate(c.Request.Context(), extractToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", benome_errors.Code(err)))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", identity.UserID, "", err)
		return
	}

	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), identity.UserID))
	defer cancel()

	client := h.registry.Attach(ctx, identity, conn)
	go client.writePump()

	err = client.readPump(ctx, h.Dispatch, func() {
		h.presence.Touch(ctx, client.UserID)
	})
	if err != nil {
		h.logger.Error("websocket unexpected close", client.UserID, client.ID, err)
	}

	h.registry.Unregister(ctx, client)
}

// Dispatch handles one client frame.
func (h *Handler) Dispatch(ctx context.Context, client *Client, raw []byte) {
	var frame events.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		h.sendError(client, benome_errors.Validation("malformed frame"))
		return
	}

	if !client.rateLimiter.Allow(frame.Event) {
		h.logger.Warn("rate limit exceeded", client.UserID, client.ID, zap.String("msg_type", frame.Event))
		return
	}

	switch frame.Event {
	case events.JoinConversation:
		h.handleJoin(ctx, client, frame)
	case events.LeaveConversation:
		h.handleLeave(client, frame)
	case events.SendMessage:
		h.handleSend(ctx, client, frame)
	case events.TypingStart, events.TypingStop:
		h.handleTyping(ctx, client, frame)
	case events.Ping:
		h.presence.Touch(ctx, client.UserID)
		h.reply(client, events.Pong, nil)
	default:
		h.logger.Warn("unknown message type", client.UserID, client.ID, zap.String("msg_type", frame.Event))
		h.sendError(client, benome_errors.Validation("unknown event "+frame.Event))
	}
}

func decodeConversationRef(frame events.Frame) (uuid.UUID, error) {
	var ref events.ConversationRef
	if err := frame.Decode(&ref); err != nil || ref.ConversationID == uuid.Nil {
		return uuid.Nil, benome_errors.Validation("conversationId is required")
	}
	return ref.ConversationID, nil
}

// handleJoin adds the connection to a conversation group. Non-participants
// are ignored without a reply.
func (h *Handler) handleJoin(ctx context.Context, client *Client, frame events.Frame) {
	convID, err := decodeConversationRef(frame)
	if err != nil {
		h.sendError(client, err)
		return
	}
	group := events.ConversationGroup(convID)
	if !h.authorizer.CanJoin(ctx, client.UserID, group) {
		h.logger.Info("join refused", client.UserID, client.ID, zap.String("conversation_id", convID.String()))
		return
	}
	h.hub.Join(client, group)
	h.logger.Debug("joined conversation", client.UserID, client.ID, zap.String("conversation_id", convID.String()))
}

func (h *Handler) handleLeave(client *Client, frame events.Frame) {
	convID, err := decodeConversationRef(frame)
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.hub.Leave(client, events.ConversationGroup(convID))
}

func (h *Handler) handleSend(ctx context.Context, client *Client, frame events.Frame) {
	var in events.SendMessagePayload
	if err := frame.Decode(&in); err != nil {
		h.sendError(client, benome_errors.Validation("invalid send_message payload"))
		return
	}
	if in.ConversationID == uuid.Nil {
		h.sendError(client, benome_errors.Validation("conversationId is required"))
		return
	}

	view, err := h.messages.SendMessage(ctx, services.SendMessageInput{
		SenderID:       client.UserID,
		ConversationID: in.ConversationID,
		Content:        in.Content,
		AttachmentURL:  in.AttachmentURL,
	})
	if err != nil {
		h.sendError(client, err)
		return
	}
	h.reply(client, events.MessageSent, events.MessageSentPayload{ClientRef: in.ClientRef, Message: view})
}

// handleTyping relays typing only from connections that joined the conversation.
func (h *Handler) handleTyping(ctx context.Context, client *Client, frame events.Frame) {
	convID, err := decodeConversationRef(frame)
	if err != nil {
		h.sendError(client, err)
		return
	}
	if !h.hub.InGroup(client, events.ConversationGroup(convID)) {
		return
	}
	h.presence.Typing(ctx, convID, client.Identity, client.ID, frame.Event == events.TypingStart)
}

func (h *Handler) reply(client *Client, event string, data any) {
	payload, err := events.Encode(event, data)
	if err != nil {
		h.logger.Error("encode reply failed", client.UserID, client.ID, err, zap.String("reply", event))
		return
	}
	if !client.trySend(payload) {
		h.logger.Warn("reply dropped", client.UserID, client.ID,
			zap.String("reply", event),
			zap.Error(benome_errors.ErrDeliveryBestEffort),
		)
	}
}

// sendError reports a failure to the originating connection only.
func (h *Handler) sendError(client *Client, err error) {
	if !benome_errors.IsKnown(err) || errors.Is(err, benome_errors.ErrPersistence) {
		h.logger.Error("request failed", client.UserID, client.ID, err)
	}
	h.reply(client, events.Error, events.ErrorPayload{
		Message: benome_errors.Message(err),
		Code:    benome_errors.Code(err),
	})
}

func extractToken(c *gin.Context) string {
	// Check query parameter
	if token := c.Query("token"); token != "" {
		return token
	}

	// Check Authorization header
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
