package message

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "beacon:cache:"
	redisMessagesList = redisKeyPrefix + "messages:order"
	redisGroupsList   = redisKeyPrefix + "groups:order"
)

func redisMessageKey(id string) string { return redisKeyPrefix + "message:" + id }
func redisGroupKey(id string) string   { return redisKeyPrefix + "group:" + id }

// RedisStore mirrors Store over Valkey/Redis, for bridge deployments running several replicas behind a load
// balancer where an edit or delete may land on a different replica than the one that performed the original send.
// Each map is a Redis list (insertion order) paired with per-entry string keys; exceeding limit trims and deletes
// the oldest entries, mirroring MemoryStore's FIFO eviction.
type RedisStore struct {
	client *redis.Client
	limit  int
}

// NewRedisStore wraps an already-connected client.
func NewRedisStore(client *redis.Client, limit int) *RedisStore {
	return &RedisStore{client: client, limit: limit}
}

func (s *RedisStore) AddMessage(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, redisMessageKey(msg.ID), data, 0)
	pipe.RPush(ctx, redisMessagesList, msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add message: %w", err)
	}

	return s.evict(ctx, redisMessagesList, redisMessageKey)
}

func (s *RedisStore) AddGroup(ctx context.Context, group MessageGroup) error {
	data, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("marshal group: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, redisGroupKey(group.ID), data, 0)
	pipe.RPush(ctx, redisGroupsList, group.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add group: %w", err)
	}

	return s.evict(ctx, redisGroupsList, redisGroupKey)
}

func (s *RedisStore) evict(ctx context.Context, listKey string, keyFn func(string) string) error {
	n, err := s.client.LLen(ctx, listKey).Result()
	if err != nil {
		return fmt.Errorf("llen %s: %w", listKey, err)
	}

	for n > int64(s.limit) {
		id, err := s.client.LPop(ctx, listKey).Result()
		if err != nil {
			return fmt.Errorf("lpop %s: %w", listKey, err)
		}
		if err := s.client.Del(ctx, keyFn(id)).Err(); err != nil {
			return fmt.Errorf("evict %s: %w", id, err)
		}
		n--
	}
	return nil
}

func (s *RedisStore) GetMessage(ctx context.Context, id string) (Message, bool, error) {
	data, err := s.client.Get(ctx, redisMessageKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, fmt.Errorf("get message %s: %w", id, err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, false, fmt.Errorf("unmarshal message %s: %w", id, err)
	}
	return msg, true, nil
}

func (s *RedisStore) GetGroup(ctx context.Context, id string) (MessageGroup, bool, error) {
	data, err := s.client.Get(ctx, redisGroupKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return MessageGroup{}, false, nil
	}
	if err != nil {
		return MessageGroup{}, false, fmt.Errorf("get group %s: %w", id, err)
	}

	var g MessageGroup
	if err := json.Unmarshal(data, &g); err != nil {
		return MessageGroup{}, false, fmt.Errorf("unmarshal group %s: %w", id, err)
	}
	return g, true, nil
}

func (s *RedisStore) GetGroupFromMessage(ctx context.Context, msgID string) (MessageGroup, bool, error) {
	msg, ok, err := s.GetMessage(ctx, msgID)
	if err != nil || !ok || msg.GroupID == "" {
		return MessageGroup{}, false, err
	}
	return s.GetGroup(ctx, msg.GroupID)
}

func (s *RedisStore) RemoveGroup(ctx context.Context, id string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, redisGroupKey(id))
	pipe.LRem(ctx, redisGroupsList, 1, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove group %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Snapshot(ctx context.Context) (Snapshot, error) {
	msgIDs, err := s.client.LRange(ctx, redisMessagesList, 0, -1).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("list messages: %w", err)
	}
	groupIDs, err := s.client.LRange(ctx, redisGroupsList, 0, -1).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("list groups: %w", err)
	}

	snap := Snapshot{}
	for _, id := range msgIDs {
		if msg, ok, err := s.GetMessage(ctx, id); err == nil && ok {
			snap.Messages = append(snap.Messages, msg)
		}
	}
	for _, id := range groupIDs {
		if g, ok, err := s.GetGroup(ctx, id); err == nil && ok {
			snap.Groups = append(snap.Groups, g)
		}
	}
	return snap, nil
}

func (s *RedisStore) Restore(ctx context.Context, snap Snapshot) error {
	if err := s.client.Del(ctx, redisMessagesList, redisGroupsList).Err(); err != nil {
		return fmt.Errorf("clear order lists: %w", err)
	}
	for _, msg := range snap.Messages {
		if err := s.AddMessage(ctx, msg); err != nil {
			return err
		}
	}
	for _, g := range snap.Groups {
		if err := s.AddGroup(ctx, g); err != nil {
			return err
		}
	}
	return nil
}
