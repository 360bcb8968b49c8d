package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Loutxo/bam-backend-sub000/internal/metrics"
)

const (
	// Room event history is a reconnect convenience, not durable state.
	eventHistoryTTL = 24 * time.Hour
	eventHistoryMax = 200
)

// RedisStore handles Redis operations for ephemeral realtime data: recent
// room event history and rate limit counters.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for the rate limiter middleware.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// roomEventsKey returns the key for a room's event history sorted set.
func roomEventsKey(roomID string) string {
	return fmt.Sprintf("room:%s:events", roomID)
}

// AddRoomEvent appends a delivered room event to the room's history. Each
// entry gets a ULID so two events retained in the same millisecond stay
// distinct sorted set members and clients have a stable cursor.
func (s *RedisStore) AddRoomEvent(ctx context.Context, roomID string, event map[string]any) error {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	entry := make(map[string]any, len(event)+1)
	for k, v := range event {
		entry[k] = v
	}
	entry["event_id"] = ulid.Make().String()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := roomEventsKey(roomID)
	now := time.Now().UnixMilli()

	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: string(data),
	})
	// Cap history length and keep the set from outliving the room.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-eventHistoryMax-1))
	pipe.Expire(ctx, key, eventHistoryTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// GetRoomEvents retrieves recent events for a room, oldest first. A zero
// "since" returns the whole retained window.
func (s *RedisStore) GetRoomEvents(ctx context.Context, roomID string, limit int, since int64) ([]map[string]any, error) {
	start := time.Now()
	defer func() { metrics.RedisLatency.Observe(time.Since(start).Seconds()) }()

	minScore := "-inf"
	if since > 0 {
		minScore = fmt.Sprintf("(%d", since) // exclusive
	}

	raw, err := s.client.ZRangeByScore(ctx, roomEventsKey(roomID), &redis.ZRangeBy{
		Min:   minScore,
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	events := make([]map[string]any, 0, len(raw))
	for _, member := range raw {
		var ev map[string]any
		if err := json.Unmarshal([]byte(member), &ev); err != nil {
			continue // skip corrupt entries
		}
		events = append(events, ev)
	}
	return events, nil
}

// DropRoomEvents deletes a room's history, used when a room is garbage
// collected after its last member leaves.
func (s *RedisStore) DropRoomEvents(ctx context.Context, roomID string) error {
	return s.client.Del(ctx, roomEventsKey(roomID)).Err()
}
