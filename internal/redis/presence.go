package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus represents a user's online status
type PresenceStatus struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// PresenceStore tracks live connections and online state in Redis so that
// every node sees the same first/last connection transitions.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceKeyPrefix    = "presence:"
	presenceOnlineSet    = "presence:online"
	presenceHeartbeatKey = "presence:heartbeat"
	connectionsKeyPrefix = "connections:"
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceStore{
		client: client,
		ttl:    ttl,
	}
}

func connectionsKey(userID string) string {
	return connectionsKeyPrefix + userID
}

// PresenceChange is the outcome of a connection update. Changed is set when
// the update flipped the user's cluster-wide online state; Version then orders
// that flip against every other flip for the same user.
type PresenceChange struct {
	UserID      string
	Connections int64
	Changed     bool
	Version     int64
}

func presenceVersionKey(userID string) string {
	return presenceKeyPrefix + "version:" + userID
}

// KEYS: connections, online set, status, heartbeat, version
// ARGV: user id, client id, connection data, ttl seconds, status json, now
var trackConnectionScript = goredis.NewScript(`
	redis.call('HSET', KEYS[1], ARGV[2], ARGV[3])
	redis.call('EXPIRE', KEYS[1], ARGV[4])
	local n = redis.call('HLEN', KEYS[1])
	local v = 0
	if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
		redis.call('SET', KEYS[3], ARGV[5], 'EX', ARGV[4])
		v = redis.call('INCR', KEYS[5])
	end
	redis.call('ZADD', KEYS[4], ARGV[6], ARGV[1])
	return {n, v}
`)

// KEYS: connections, online set, status, heartbeat, version
// ARGV: user id, client id, status json
var removeConnectionScript = goredis.NewScript(`
	redis.call('HDEL', KEYS[1], ARGV[2])
	local n = redis.call('HLEN', KEYS[1])
	local v = 0
	if n == 0 and redis.call('SREM', KEYS[2], ARGV[1]) == 1 then
		redis.call('SET', KEYS[3], ARGV[3], 'EX', 86400)
		redis.call('ZREM', KEYS[4], ARGV[1])
		v = redis.call('INCR', KEYS[5])
	end
	return {n, v}
`)

// KEYS: connections, online set, status, heartbeat, version
// ARGV: user id, status json, threshold
var expireStaleScript = goredis.NewScript(`
	local score = redis.call('ZSCORE', KEYS[4], ARGV[1])
	if not score or tonumber(score) > tonumber(ARGV[3]) then
		return 0
	end
	redis.call('DEL', KEYS[1])
	redis.call('ZREM', KEYS[4], ARGV[1])
	redis.call('SET', KEYS[3], ARGV[2], 'EX', 86400)
	if redis.call('SREM', KEYS[2], ARGV[1]) == 1 then
		return redis.call('INCR', KEYS[5])
	end
	return 0
`)

func (p *PresenceStore) keys(userID string) []string {
	return []string{
		connectionsKey(userID),
		presenceOnlineSet,
		presenceKeyPrefix + userID,
		presenceHeartbeatKey,
		presenceVersionKey(userID),
	}
}

func statusJSON(userID string, online bool, at time.Time) (string, error) {
	data, err := json.Marshal(PresenceStatus{UserID: userID, IsOnline: online, LastSeen: at})
	return string(data), err
}

func toChange(userID string, res []int64) PresenceChange {
	change := PresenceChange{UserID: userID}
	if len(res) == 2 {
		change.Connections = res[0]
		change.Version = res[1]
		change.Changed = res[1] > 0
	}
	return change
}

// TrackConnection records a connection. The count and the online flip happen
// in one script, so exactly one node sees the user come online.
func (p *PresenceStore) TrackConnection(ctx context.Context, userID, clientID, nodeID string) (PresenceChange, error) {
	now := time.Now().UTC()
	data, err := json.Marshal(map[string]string{
		"node_id":      nodeID,
		"connected_at": now.Format(time.RFC3339),
	})
	if err != nil {
		return PresenceChange{}, err
	}
	status, err := statusJSON(userID, true, now)
	if err != nil {
		return PresenceChange{}, err
	}

	res, err := trackConnectionScript.Run(ctx, p.client, p.keys(userID),
		userID, clientID, string(data), int64(p.ttl.Seconds()), status, now.Unix()).Int64Slice()
	if err != nil {
		return PresenceChange{}, fmt.Errorf("track connection: %w", err)
	}
	return toChange(userID, res), nil
}

// RemoveConnection drops a connection. Only the removal that empties the
// connection hash takes the user offline.
func (p *PresenceStore) RemoveConnection(ctx context.Context, userID, clientID string) (PresenceChange, error) {
	status, err := statusJSON(userID, false, time.Now().UTC())
	if err != nil {
		return PresenceChange{}, err
	}

	res, err := removeConnectionScript.Run(ctx, p.client, p.keys(userID), userID, clientID, status).Int64Slice()
	if err != nil {
		return PresenceChange{}, fmt.Errorf("remove connection: %w", err)
	}
	return toChange(userID, res), nil
}

// ConnectionCount returns the number of connections a user holds across nodes.
func (p *PresenceStore) ConnectionCount(ctx context.Context, userID string) (int64, error) {
	return p.client.HLen(ctx, connectionsKey(userID)).Result()
}

// Heartbeat refreshes the TTLs of a live connection.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID string) error {
	pipe := p.client.Pipeline()
	pipe.Expire(ctx, presenceKeyPrefix+userID, p.ttl)
	pipe.Expire(ctx, connectionsKey(userID), p.ttl)
	pipe.ZAdd(ctx, presenceHeartbeatKey, goredis.Z{
		Score:  float64(time.Now().Unix()),
		Member: userID,
	})
	_, err := pipe.Exec(ctx)
	return err
}

// GetMultiplePresence gets presence status for multiple users. Unknown users
// are reported offline with a zero LastSeen.
func (p *PresenceStore) GetMultiplePresence(ctx context.Context, userIDs []string) (map[string]PresenceStatus, error) {
	result := make(map[string]PresenceStatus, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	pipe := p.client.Pipeline()
	cmds := make(map[string]*goredis.StringCmd, len(userIDs))
	for _, userID := range userIDs {
		cmds[userID] = pipe.Get(ctx, presenceKeyPrefix+userID)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return nil, err
	}

	for userID, cmd := range cmds {
		status := PresenceStatus{UserID: userID}
		if data, err := cmd.Result(); err == nil {
			if err := json.Unmarshal([]byte(data), &status); err != nil {
				status = PresenceStatus{UserID: userID}
			}
		}
		result[userID] = status
	}
	return result, nil
}

// IsOnline checks if a user is online
func (p *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID).Result()
}

// GetOnlineCount returns the count of online users
func (p *PresenceStore) GetOnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}

// CleanupStalePresence takes users without a heartbeat for maxAge offline. A
// node that died without unregistering leaves such users. The heartbeat is
// re-checked inside the script so a user who reconnected meanwhile is kept.
func (p *PresenceStore) CleanupStalePresence(ctx context.Context, maxAge time.Duration) ([]PresenceChange, error) {
	now := time.Now().UTC()
	threshold := now.Add(-maxAge).Unix()

	staleUsers, err := p.client.ZRangeByScore(ctx, presenceHeartbeatKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(threshold, 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	cleaned := make([]PresenceChange, 0, len(staleUsers))
	for _, userID := range staleUsers {
		status, err := statusJSON(userID, false, now)
		if err != nil {
			return cleaned, err
		}
		version, err := expireStaleScript.Run(ctx, p.client, p.keys(userID), userID, status, threshold).Int64()
		if err != nil {
			return cleaned, fmt.Errorf("expire stale presence: %w", err)
		}
		if version > 0 {
			cleaned = append(cleaned, PresenceChange{UserID: userID, Changed: true, Version: version})
		}
	}
	return cleaned, nil
}
