package mq

import (
	"context"
	"errors"
	"io"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"sunbyte-wallet/pkg/logger"
)

// KafkaConsumer 实现 Consumer 接口，按消费组读取
type KafkaConsumer struct {
	brokers []string
	group   string
	reader  *kafka.Reader
}

func NewKafkaConsumer(brokers []string, group string) *KafkaConsumer {
	return &KafkaConsumer{brokers: brokers, group: group}
}

// Subscribe 阻塞消费。handler 返回 nil 才提交位点，失败的消息会被重新投递。
func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.brokers,
		GroupID:  c.group,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		msg := &Message{
			Topic:   m.Topic,
			Key:     string(m.Key),
			Payload: m.Value,
		}
		if err := handler(msg); err != nil {
			logger.Warn("[Kafka] 处理失败，不提交位点", zap.Error(err))
			continue
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			logger.Error("[Kafka] 提交位点失败", zap.Error(err))
		}
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
