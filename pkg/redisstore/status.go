package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreStatus caches the latest observed state of a target. Advisory only:
// the incident store in postgres stays the source of truth.
func (c *Client) StoreStatus(ctx context.Context, targetID string, status string, success bool, latencyMs int64, checkedAt time.Time) error {
	key := fmt.Sprintf("target:status:%v", targetID)

	return retry(ctx, 2, func() error {
		return c.rdb.HSet(ctx, key, map[string]any{
			"status":     status,
			"success":    success,
			"latency_ms": latencyMs,
			"checked_at": checkedAt.Unix(),
		}).Err()
	})
}

func (c *Client) GetStatus(ctx context.Context, targetID string) (map[string]string, error) {
	key := fmt.Sprintf("target:status:%v", targetID)

	res, err := c.rdb.HGetAll(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	return res, err
}

func (c *Client) DelStatus(ctx context.Context, targetID string) error {
	key := fmt.Sprintf("target:status:%v", targetID)

	return c.rdb.Del(ctx, key).Err()
}
