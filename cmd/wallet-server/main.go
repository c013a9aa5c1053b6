package main

import (
	"context"
	"fmt"
	"os"

	"sunbyte-wallet/internal/handler"
	"sunbyte-wallet/internal/model"
	"sunbyte-wallet/internal/server"
	"sunbyte-wallet/internal/service/audit"
	"sunbyte-wallet/internal/service/mq"
	"sunbyte-wallet/internal/service/wallet"

	"sunbyte-wallet/pkg/config"
	"sunbyte-wallet/pkg/database"
	"sunbyte-wallet/pkg/logger"
	"sunbyte-wallet/pkg/monitor"

	"go.uber.org/zap"
)

// @title SunByte Wallet API
// @version 1.0
// @description Signing service for the SunByte demo wallet

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 初始化监控指标
	monitor.Init()

	// 3. 连接数据库
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=Asia/Shanghai",
		config.Global.DB.Host,
		config.Global.DB.User,
		config.Global.DB.Password,
		config.Global.DB.Name,
		config.Global.DB.Port,
	)
	db, err := database.ConnectPostgres(dsn, config.Global.App.Env)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}

	// 4. 执行数据库迁移 (Auto Migrate) - 仅开发环境
	if config.Global.App.Env == "development" {
		logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
		if err := db.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
		logger.Info("数据库自动迁移完成 (Dev Mode)")
	} else {
		logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
	}

	// 5. 初始化消息队列 (生产者 + 审计消费者)
	var producer mq.Producer
	var consumer mq.Consumer
	switch config.Global.Redis.MQType {
	case "kafka":
		producer = mq.NewKafkaProducer(config.Global.Kafka.Brokers, mq.TopicWalletEvents)
		consumer = mq.NewKafkaConsumer(config.Global.Kafka.Brokers, audit.ConsumerGroup)
		logger.Info("消息队列: Kafka", zap.Strings("brokers", config.Global.Kafka.Brokers))
	case "redis":
		rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
		producer = mq.NewRedisStreamProducer(rdb)
		consumer = mq.NewRedisStreamConsumer(rdb, audit.ConsumerGroup, hostname())
		logger.Info("消息队列: Redis Stream", zap.String("addr", config.Global.Redis.Addr))
	default:
		producer = mq.NopProducer{}
		logger.Warn("消息队列未配置，事件将被丢弃")
	}

	// 钱包事件审计: 异步消费 wallet_events 落库存证
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	if consumer != nil {
		auditor := audit.New(db, consumer)
		go func() {
			if err := auditor.Start(auditCtx); err != nil {
				logger.Error("审计消费者退出", zap.Error(err))
			}
		}()
		defer auditor.Close()
	}

	// 6. 初始化钱包服务
	walletService := wallet.NewService(
		db,
		config.Global.Wallet.KeystoreDir,
		config.Global.Wallet.RpcUrl,
		config.Global.Wallet.ChainID,
		producer,
	)
	if walletService.Simulated() {
		logger.Warn("⚠️  钱包服务运行在模拟模式，交易不会真实上链")
	}

	// 7. 组装 HTTP 路由
	walletHandler := handler.NewWalletHandler(walletService)
	engine := server.NewRouter(walletHandler)

	// 8. 启动服务 (阻塞，带优雅关闭)
	app, err := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, engine)
	if err != nil {
		logger.Fatal("服务初始化失败", zap.Error(err))
	}
	app.Run()
}

// hostname Redis Stream 消费组内的消费者名
func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "wallet-server"
	}
	return name
}
