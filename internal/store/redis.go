package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists session state as two independent keys per session:
// session:<id>:history (a JSON array of Messages) and session:<id>:createdAt
// (epoch milliseconds). Neither key expires on its own; CleanupOldSessions is
// the only removal mechanism.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func historyKey(sessionID string) string   { return fmt.Sprintf("session:%s:history", sessionID) }
func createdAtKey(sessionID string) string { return fmt.Sprintf("session:%s:createdAt", sessionID) }

// CreateSession allocates a fresh session id with an empty history and a
// creation timestamp. The session is only valid once both keys are written.
func (s *RedisStore) CreateSession(ctx context.Context) (string, error) {
	sessionID := uuid.NewString()
	if err := s.client.Set(ctx, historyKey(sessionID), "[]", 0).Err(); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	now := time.Now().UnixMilli()
	if err := s.client.Set(ctx, createdAtKey(sessionID), now, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return sessionID, nil
}

// IsValidSession reports whether both session keys exist. A session missing
// either one (partial write, or already swept) is invalid.
func (s *RedisStore) IsValidSession(ctx context.Context, sessionID string) (bool, error) {
	count, err := s.client.Exists(ctx, historyKey(sessionID), createdAtKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to validate session: %w", err)
	}
	return count == 2, nil
}

// AddMessageToHistory appends a timestamped message by rewriting the whole
// history value. Two concurrent appends to the same session race: both read the
// full array and the last writer wins. That lost-update window is intentional;
// request handling never serializes sessions.
func (s *RedisStore) AddMessageToHistory(ctx context.Context, sessionID string, msg Message) error {
	history, err := s.GetSessionHistory(ctx, sessionID)
	if err != nil {
		return err
	}
	msg.Timestamp = time.Now().UnixMilli()
	history = append(history, msg)

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := s.client.Set(ctx, historyKey(sessionID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to add message to history: %w", err)
	}
	return nil
}

// GetSessionHistory returns the ordered message history. An absent key is an
// empty history, not an error.
func (s *RedisStore) GetSessionHistory(ctx context.Context, sessionID string) ([]Message, error) {
	data, err := s.client.Get(ctx, historyKey(sessionID)).Result()
	if err == redis.Nil {
		return []Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session history: %w", err)
	}
	var history []Message
	if err := json.Unmarshal([]byte(data), &history); err != nil {
		return nil, fmt.Errorf("failed to decode session history: %w", err)
	}
	return history, nil
}

// ClearSessionHistory resets the history to empty. createdAt is untouched, so
// the session stays valid.
func (s *RedisStore) ClearSessionHistory(ctx context.Context, sessionID string) error {
	if err := s.client.Set(ctx, historyKey(sessionID), "[]", 0).Err(); err != nil {
		return fmt.Errorf("failed to clear session history: %w", err)
	}
	return nil
}

// CleanupOldSessions deletes both keys of every session older than
// maxAgeMinutes and returns how many sessions were removed.
func (s *RedisStore) CleanupOldSessions(ctx context.Context, maxAgeMinutes int) (int, error) {
	keys, err := s.client.Keys(ctx, "session:*:createdAt").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := time.Now().UnixMilli()
	maxAgeMs := int64(maxAgeMinutes) * 60 * 1000
	cleaned := 0
	for _, key := range keys {
		value, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return cleaned, fmt.Errorf("failed to read session age: %w", err)
		}
		createdAt, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		if now-createdAt > maxAgeMs {
			sessionID := strings.Split(key, ":")[1]
			if err := s.client.Del(ctx, historyKey(sessionID), createdAtKey(sessionID)).Err(); err != nil {
				return cleaned, fmt.Errorf("failed to delete session %s: %w", sessionID, err)
			}
			cleaned++
		}
	}
	return cleaned, nil
}
