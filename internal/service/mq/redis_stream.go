package mq

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"sunbyte-wallet/pkg/logger"
)

// RedisStreamProducer 基于 Redis Stream 的生产者，单机开发环境替代 Kafka
type RedisStreamProducer struct {
	client *redis.Client
}

func NewRedisStreamProducer(client *redis.Client) *RedisStreamProducer {
	return &RedisStreamProducer{client: client}
}

func (p *RedisStreamProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: 10000, // 近似截断，防止无限增长
		Approx: true,
		Values: map[string]interface{}{
			"key":     key,
			"payload": payload,
		},
	}).Err()
}

// RedisStreamConsumer 消费者，按消费组读取
type RedisStreamConsumer struct {
	client   *redis.Client
	group    string
	consumer string
	done     chan struct{}
}

func NewRedisStreamConsumer(client *redis.Client, group, consumer string) *RedisStreamConsumer {
	return &RedisStreamConsumer{
		client:   client,
		group:    group,
		consumer: consumer,
		done:     make(chan struct{}),
	}
}

// Subscribe 阻塞消费，handler 返回 nil 才 ACK
func (c *RedisStreamConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	// 消费组已存在时忽略 BUSYGROUP
	if err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "$").Err(); err != nil {
		if !errors.Is(err, redis.Nil) && err.Error() != "BUSYGROUP Consumer Group name already exists" {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  []string{topic, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			logger.Error("[RedisStream] 读取失败", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, entry := range stream.Messages {
				msg := &Message{
					ID:    entry.ID,
					Topic: topic,
				}
				if key, ok := entry.Values["key"].(string); ok {
					msg.Key = key
				}
				if payload, ok := entry.Values["payload"].(string); ok {
					msg.Payload = []byte(payload)
				}

				if err := handler(msg); err != nil {
					// 不 ACK，留在 pending 列表等待重试
					logger.Warn("[RedisStream] 处理失败", zap.String("id", entry.ID), zap.Error(err))
					continue
				}
				if err := c.client.XAck(ctx, topic, c.group, entry.ID).Err(); err != nil {
					logger.Error("[RedisStream] ACK 失败", zap.String("id", entry.ID), zap.Error(err))
				}
			}
		}
	}
}

func (c *RedisStreamConsumer) Close() error {
	close(c.done)
	return nil
}
