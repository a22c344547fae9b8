package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{user_id}:messages - per-minute message sends
// - ratelimit:{ip}:connections - per-minute websocket handshakes

type RateLimitConfig struct {
	MessageLimit     int
	MessageWindow    time.Duration
	ConnectionLimit  int
	ConnectionWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:     60,
		MessageWindow:    60 * time.Second,
		ConnectionLimit:  30,
		ConnectionWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

var checkLimitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

func messageKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s:messages", userID)
}

func connectionKey(ip string) string {
	return fmt.Sprintf("ratelimit:%s:connections", ip)
}

// AllowMessage checks if a user can send a message
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, messageKey(userID), r.config.MessageLimit, r.config.MessageWindow)
}

// AllowConnection checks if an IP can open another websocket
func (r *RateLimiter) AllowConnection(ctx context.Context, ip string) (*RateLimitResult, error) {
	return r.checkLimit(ctx, connectionKey(ip), r.config.ConnectionLimit, r.config.ConnectionWindow)
}

// checkLimit increments and checks a fixed-window counter atomically.
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := checkLimitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}

// ResetUser clears the message counter for a user.
func (r *RateLimiter) ResetUser(ctx context.Context, userID string) error {
	return r.client.Del(ctx, messageKey(userID)).Err()
}

// PeekMessage reports the user's message budget without consuming any of it.
func (r *RateLimiter) PeekMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	key := messageKey(userID)
	pipe := r.client.Pipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("rate limit peek failed: %w", err)
	}

	used, err := get.Int()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("rate limit peek failed: %w", err)
	}
	reset := ttl.Val()
	if reset < 0 {
		reset = r.config.MessageWindow
	}
	remaining := r.config.MessageLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return &RateLimitResult{
		Allowed:   remaining > 0,
		Remaining: remaining,
		ResetIn:   reset,
		Limit:     r.config.MessageLimit,
	}, nil
}
