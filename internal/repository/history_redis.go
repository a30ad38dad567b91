package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"projectcompanion/internal/model"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	historyKey    = "companion:chat:history"
	historyMaxLen = 200
)

// RedisHistoryRepository mirrors the in-memory conversation history into
// Redis so it survives restarts. The in-memory session stays authoritative;
// this repository is a best-effort backup.
type RedisHistoryRepository struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisHistoryRepository(client *redis.Client, logger *zap.Logger) *RedisHistoryRepository {
	return &RedisHistoryRepository{client: client, logger: logger}
}

// Append pushes one message onto the history list and trims it to a bounded
// length.
func (r *RedisHistoryRepository) Append(ctx context.Context, msg model.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode chat message: %w", err)
	}
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, -historyMaxLen, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat history: %w", err)
	}
	return nil
}

// Load returns up to limit most recent messages, oldest first. limit <= 0
// loads the full stored history.
func (r *RedisHistoryRepository) Load(ctx context.Context, limit int) ([]model.ChatMessage, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.client.LRange(ctx, historyKey, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}

	msgs := make([]model.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			r.logger.Warn("Skipping undecodable history entry", zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Clear removes the stored history.
func (r *RedisHistoryRepository) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, historyKey).Err(); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
