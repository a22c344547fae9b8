package services

import (
	"context"
	"errors"
	"time"

	"benome-realtime/internal/events"
	"benome-realtime/internal/redis"
	"benome-realtime/internal/repository"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type PresenceStore interface {
	TrackConnection(ctx context.Context, userID, clientID, nodeID string) (redis.PresenceChange, error)
	RemoveConnection(ctx context.Context, userID, clientID string) (redis.PresenceChange, error)
	Heartbeat(ctx context.Context, userID string) error
	GetMultiplePresence(ctx context.Context, userIDs []string) (map[string]redis.PresenceStatus, error)
	CleanupStalePresence(ctx context.Context, maxAge time.Duration) ([]redis.PresenceChange, error)
}

type PresenceSnapshot struct {
	UserID   uuid.UUID
	IsOnline bool
	LastSeen *time.Time
}

// PresenceService turns first and last connections into online and offline
// transitions. Without a store the local connection counts decide; with one
// the store decides atomically and versions each transition, and a transition
// that lost to a newer one on another node is neither stored nor announced.
type PresenceService struct {
	users       repository.UserRepository
	store       PresenceStore
	broadcaster Broadcaster
	nodeID      string
	logger      *zap.Logger
}

func NewPresenceService(users repository.UserRepository, store PresenceStore, broadcaster Broadcaster, nodeID string, logger *zap.Logger) *PresenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceService{
		users:       users,
		store:       store,
		broadcaster: broadcaster,
		nodeID:      nodeID,
		logger:      logger,
	}
}

// Connected records a new connection. firstLocal reports whether it is the
// user's only connection on this node. It returns true when the user went online.
func (s *PresenceService) Connected(ctx context.Context, userID uuid.UUID, clientID string, firstLocal bool) bool {
	first, version := firstLocal, int64(0)
	if s.store != nil {
		change, err := s.store.TrackConnection(ctx, userID.String(), clientID, s.nodeID)
		if err != nil {
			s.logger.Warn("presence store unavailable, using local count", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			first, version = change.Changed, change.Version
		}
	}
	if !first {
		return false
	}
	return s.transition(ctx, userID, true, version)
}

// Disconnected records a closed connection. lastLocal reports whether the user
// has no connection left on this node. It returns true when the user went offline.
func (s *PresenceService) Disconnected(ctx context.Context, userID uuid.UUID, clientID string, lastLocal bool) bool {
	ctx = context.WithoutCancel(ctx)

	last, version := lastLocal, int64(0)
	if s.store != nil {
		change, err := s.store.RemoveConnection(ctx, userID.String(), clientID)
		if err != nil {
			s.logger.Warn("presence store unavailable, using local count", zap.String("user_id", userID.String()), zap.Error(err))
		} else {
			last, version = change.Changed, change.Version
		}
	}
	if !last {
		return false
	}
	return s.transition(ctx, userID, false, version)
}

// transition persists and announces a presence flip. A storage failure other
// than a stale version still announces.
func (s *PresenceService) transition(ctx context.Context, userID uuid.UUID, online bool, version int64) bool {
	err := s.users.SetOnlineStatus(ctx, userID, online, time.Now().UTC(), version)
	switch {
	case errors.Is(err, benome_errors.ErrConflict):
		s.logger.Debug("presence transition superseded", zap.String("user_id", userID.String()), zap.Bool("online", online), zap.Int64("version", version))
		return false
	case err != nil:
		s.logger.Error("failed to persist presence", zap.String("user_id", userID.String()), zap.Bool("online", online), zap.Error(err))
	}

	event := events.UserOffline
	if online {
		event = events.UserOnline
	}
	s.announce(ctx, userID, event)
	return true
}

func (s *PresenceService) announce(ctx context.Context, userID uuid.UUID, event string) {
	payload, err := events.Encode(event, events.PresencePayload{UserID: userID})
	if err != nil {
		s.logger.Error("failed to encode presence event", zap.Error(err))
		return
	}
	s.broadcaster.PublishToAllExcept(ctx, userID, payload)
}

// Touch refreshes the user's presence TTLs on heartbeat.
func (s *PresenceService) Touch(ctx context.Context, userID uuid.UUID) {
	if s.store == nil {
		return
	}
	if err := s.store.Heartbeat(ctx, userID.String()); err != nil {
		s.logger.Debug("presence heartbeat failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// Typing relays a typing indicator to the conversation group, skipping the
// originating connection. Typing state is never stored.
func (s *PresenceService) Typing(ctx context.Context, conversationID uuid.UUID, who Identity, exceptClientID string, started bool) {
	event := events.UserStoppedTyping
	data := events.TypingPayload{ConversationID: conversationID, UserID: who.UserID}
	if started {
		event = events.UserTyping
		data.FirstName = who.FirstName
	}

	payload, err := events.Encode(event, data)
	if err != nil {
		s.logger.Error("failed to encode typing event", zap.Error(err))
		return
	}
	s.broadcaster.PublishExcept(ctx, events.ConversationGroup(conversationID), payload, exceptClientID)
}

// Snapshot reports the presence of the given users.
func (s *PresenceService) Snapshot(ctx context.Context, userIDs []uuid.UUID) ([]PresenceSnapshot, error) {
	if len(userIDs) == 0 {
		return []PresenceSnapshot{}, nil
	}

	if s.store != nil {
		ids := make([]string, 0, len(userIDs))
		for _, id := range userIDs {
			ids = append(ids, id.String())
		}
		statuses, err := s.store.GetMultiplePresence(ctx, ids)
		if err == nil {
			out := make([]PresenceSnapshot, 0, len(userIDs))
			for _, id := range userIDs {
				st := statuses[id.String()]
				snap := PresenceSnapshot{UserID: id, IsOnline: st.IsOnline}
				if !st.LastSeen.IsZero() {
					seen := st.LastSeen
					snap.LastSeen = &seen
				}
				out = append(out, snap)
			}
			return out, nil
		}
		s.logger.Warn("presence store read failed, falling back to database", zap.Error(err))
	}

	users, err := s.users.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]PresenceSnapshot, len(users))
	for _, u := range users {
		snap := PresenceSnapshot{UserID: u.ID, IsOnline: u.IsOnline}
		if u.LastSeenAt.Valid {
			seen := u.LastSeenAt.Time
			snap.LastSeen = &seen
		}
		byID[u.ID] = snap
	}
	out := make([]PresenceSnapshot, 0, len(userIDs))
	for _, id := range userIDs {
		snap, ok := byID[id]
		if !ok {
			snap = PresenceSnapshot{UserID: id}
		}
		out = append(out, snap)
	}
	return out, nil
}

// SweepStale takes users whose node stopped heartbeating offline.
func (s *PresenceService) SweepStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	stale, err := s.store.CleanupStalePresence(ctx, maxAge)
	swept := 0
	for _, change := range stale {
		userID, parseErr := uuid.Parse(change.UserID)
		if parseErr != nil {
			continue
		}
		if s.transition(ctx, userID, false, change.Version) {
			swept++
		}
	}
	return swept, err
}
