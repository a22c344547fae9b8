package websocket

import (
	"sync"
	"time"

	"benome-realtime/internal/events"
)

// Rate limits per minute
type RateLimits struct {
	MaxTypingEvents int
	MaxJoinEvents   int
	MaxPingMessages int
}

var DefaultRateLimits = RateLimits{
	MaxTypingEvents: 60,
	MaxJoinEvents:   120,
	MaxPingMessages: 60,
}

// ClientRateLimiter tracks per-connection budgets for chatty frames. Message
// sends are limited per user in Redis instead.
type ClientRateLimiter struct {
	limits     RateLimits
	typing     int
	joins      int
	pings      int
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func NewClientRateLimiter(limits RateLimits) *ClientRateLimiter {
	rl := &ClientRateLimiter{limits: limits, now: time.Now}
	rl.refill(rl.now())
	return rl
}

func (rl *ClientRateLimiter) Allow(event string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastRefill) >= time.Minute {
		rl.refill(now)
	}

	var tokens *int
	switch event {
	case events.TypingStart, events.TypingStop:
		tokens = &rl.typing
	case events.JoinConversation, events.LeaveConversation:
		tokens = &rl.joins
	case events.Ping:
		tokens = &rl.pings
	default:
		return true
	}
	if *tokens <= 0 {
		return false
	}
	*tokens--
	return true
}

func (rl *ClientRateLimiter) refill(now time.Time) {
	rl.typing = rl.limits.MaxTypingEvents
	rl.joins = rl.limits.MaxJoinEvents
	rl.pings = rl.limits.MaxPingMessages
	rl.lastRefill = now
}
