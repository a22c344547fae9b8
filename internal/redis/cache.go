package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"benome-realtime/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - user:{user_id} - 5m TTL, display profile used on the hot send/typing paths

// CachedProfile is the display subset of a user kept in Redis.
type CachedProfile struct {
	ID                uuid.UUID `json:"id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
}

func ProfileFromUser(u user.User) CachedProfile {
	return CachedProfile{
		ID:                u.ID,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		ProfilePictureURL: u.ProfilePictureURL.String,
	}
}

// ProfileCache handles user profile caching in Redis
type ProfileCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewProfileCache(client *goredis.Client, ttl time.Duration) *ProfileCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{client: client, ttl: ttl}
}

func userKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s", userID.String())
}

// GetUser returns nil, nil on a cache miss.
func (c *ProfileCache) GetUser(ctx context.Context, userID uuid.UUID) (*CachedProfile, error) {
	data, err := c.client.Get(ctx, userKey(userID)).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var profile CachedProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *ProfileCache) SetUser(ctx context.Context, profile CachedProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, userKey(profile.ID), data, c.ttl).Err()
}

func (c *ProfileCache) InvalidateUser(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, userKey(userID)).Err()
}
