package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AdDoha0/realtime-chat/internal/models"
)

const (
	messageTTL  = 24 * time.Hour
	presenceTTL = 12 * time.Hour
)

// RedisStore is an optional hot cache in front of the message store: the
// most recent messages per room and a shared presence mirror. All writes
// are best-effort; the relational store remains the source of truth.
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

// roomMessagesKey returns the key for a room's message sorted set.
func roomMessagesKey(roomID string) string {
	return fmt.Sprintf("room:%s:messages", roomID)
}

// roomOnlineKey returns the key for a room's online-user set.
func roomOnlineKey(roomID string) string {
	return fmt.Sprintf("room:%s:online", roomID)
}

// CacheMessage adds a persisted message to the room's recent-message set.
func (s *RedisStore) CacheMessage(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := roomMessagesKey(msg.RoomID)

	err = s.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
	if err != nil {
		return err
	}

	s.client.Expire(ctx, key, messageTTL)
	return nil
}

// RecentMessages retrieves the newest cached messages of a room, newest
// first. An empty result means a cache miss, not an empty room.
func (s *RedisStore) RecentMessages(ctx context.Context, roomID string, limit int) ([]models.Message, error) {
	key := roomMessagesKey(roomID)

	results, err := s.client.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(results))
	for _, data := range results {
		var msg models.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// AddOnlineUser adds user to the room's shared presence set.
func (s *RedisStore) AddOnlineUser(ctx context.Context, roomID, user string) error {
	key := roomOnlineKey(roomID)
	if err := s.client.SAdd(ctx, key, user).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, presenceTTL).Err()
}

// RemoveOnlineUser removes user from the room's shared presence set.
func (s *RedisStore) RemoveOnlineUser(ctx context.Context, roomID, user string) error {
	return s.client.SRem(ctx, roomOnlineKey(roomID), user).Err()
}

// OnlineUserCount returns the size of the room's shared presence set.
func (s *RedisStore) OnlineUserCount(ctx context.Context, roomID string) (int, error) {
	n, err := s.client.SCard(ctx, roomOnlineKey(roomID)).Result()
	return int(n), err
}
