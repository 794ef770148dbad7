package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/examproctor/backend/pkg/logger"
)

// Client publishes live session status to redis so dashboards outside this
// process can watch a running exam. Everything here is best-effort.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetStatus stores the latest frame verdict for a session.
func (c *Client) SetStatus(ctx context.Context, sessionID string, status interface{}, ttl time.Duration) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("session:%s:status", sessionID), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session status: %w", err)
	}

	return nil
}

// GetStatus loads the latest frame verdict for a session, reporting a miss
// as found=false.
func (c *Client) GetStatus(ctx context.Context, sessionID string, status interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("session:%s:status", sessionID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get session status: %w", err)
	}

	err = json.Unmarshal(data, status)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	return true, nil
}

// IncrementFlag bumps the per-reason violation counter for a session.
func (c *Client) IncrementFlag(ctx context.Context, sessionID, reason string) error {
	return c.client.HIncrBy(ctx, fmt.Sprintf("session:%s:flags", sessionID), reason, 1).Err()
}

// GetFlagCounts reads the per-reason violation counters for a session.
func (c *Client) GetFlagCounts(ctx context.Context, sessionID string) (map[string]string, error) {
	counts, err := c.client.HGetAll(ctx, fmt.Sprintf("session:%s:flags", sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get flag counts: %w", err)
	}
	return counts, nil
}

// ClearSession removes all cached state for a finished session.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	keys := []string{
		fmt.Sprintf("session:%s:status", sessionID),
		fmt.Sprintf("session:%s:flags", sessionID),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear session cache: %w", err)
	}
	return nil
}
