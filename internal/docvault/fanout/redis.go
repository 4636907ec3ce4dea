package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher 通过 Redis PUB/SUB 发布消息，
// routing key 作为频道名，payload 序列化为JSON。
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher 创建Redis消息发布器
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if err := p.rdb.Publish(ctx, routingKey, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}
