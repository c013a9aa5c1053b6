// Package audit 订阅钱包事件流并落库存证。
// 与签名服务解耦: 事件经 MQ 异步到达，审计失败不影响签名链路。
package audit

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sunbyte-wallet/internal/model"
	"sunbyte-wallet/internal/service/mq"
	"sunbyte-wallet/internal/service/wallet"
	"sunbyte-wallet/pkg/logger"
)

// ConsumerGroup 审计消费组名
const ConsumerGroup = "wallet-auditor"

type Auditor struct {
	db       *gorm.DB
	consumer mq.Consumer
}

func New(db *gorm.DB, consumer mq.Consumer) *Auditor {
	return &Auditor{db: db, consumer: consumer}
}

// Start 阻塞消费 wallet_events，直到 ctx 取消
func (a *Auditor) Start(ctx context.Context) error {
	logger.Info("[Auditor] 开始消费钱包事件", zap.String("topic", mq.TopicWalletEvents))
	return a.consumer.Subscribe(ctx, mq.TopicWalletEvents, a.handle)
}

func (a *Auditor) Close() error {
	return a.consumer.Close()
}

// handle 返回 error 时消息不被 ACK，等待重投；解析失败的毒消息直接吞掉
func (a *Auditor) handle(msg *mq.Message) error {
	var event wallet.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		logger.Warn("[Auditor] 事件解析失败，丢弃", zap.String("id", msg.ID), zap.Error(err))
		return nil
	}

	if a.db != nil {
		entry := model.EventLog{
			EventType:  event.Type,
			Address:    event.Address,
			TxHash:     event.TxHash,
			OccurredAt: event.At,
		}
		if err := a.db.Create(&entry).Error; err != nil {
			logger.Error("[Auditor] 事件入账失败", zap.String("type", event.Type), zap.Error(err))
			return err
		}
	}

	logger.Info("[Auditor] 事件入账 ✅",
		zap.String("type", event.Type),
		zap.String("address", event.Address))
	return nil
}
