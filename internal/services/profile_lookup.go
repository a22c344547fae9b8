package services

import (
	"context"

	"benome-realtime/internal/redis"
	"benome-realtime/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileSource resolves a user's display profile.
type ProfileSource interface {
	Get(ctx context.Context, userID uuid.UUID) (redis.CachedProfile, error)
}

// IdentitySource resolves a user against the users table, never a cache.
type IdentitySource interface {
	Resolve(ctx context.Context, userID uuid.UUID) (redis.CachedProfile, error)
}

type ProfileCache interface {
	GetUser(ctx context.Context, userID uuid.UUID) (*redis.CachedProfile, error)
	SetUser(ctx context.Context, profile redis.CachedProfile) error
}

// ProfileLookup reads through the Redis profile cache to the users table.
// A nil cache disables caching.
type ProfileLookup struct {
	users  repository.UserRepository
	cache  ProfileCache
	logger *zap.Logger
}

func NewProfileLookup(users repository.UserRepository, cache ProfileCache, logger *zap.Logger) *ProfileLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileLookup{users: users, cache: cache, logger: logger}
}

func (p *ProfileLookup) Get(ctx context.Context, userID uuid.UUID) (redis.CachedProfile, error) {
	if p.cache != nil {
		cached, err := p.cache.GetUser(ctx, userID)
		if err != nil {
			p.logger.Warn("profile cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	return p.Resolve(ctx, userID)
}

// Resolve reads the user from the database and refreshes the cache entry.
// Authentication uses it so a deleted user is rejected immediately.
func (p *ProfileLookup) Resolve(ctx context.Context, userID uuid.UUID) (redis.CachedProfile, error) {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return redis.CachedProfile{}, err
	}
	profile := redis.ProfileFromUser(u)

	if p.cache != nil {
		if err := p.cache.SetUser(ctx, profile); err != nil {
			p.logger.Warn("profile cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return profile, nil
}
