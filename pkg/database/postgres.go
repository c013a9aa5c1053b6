package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sunbyte-wallet/pkg/logger"
)

// ConnectPostgres 连接 PostgreSQL。
// 开发环境打印全部 SQL 方便调试，其他环境只记慢查询和错误。
func ConnectPostgres(dsn, env string) (*gorm.DB, error) {
	logMode := gormlogger.Warn
	if env == "development" {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 签名服务写入量低 (钱包行 + 交易/事件日志)，连接池小而稳即可
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("[Database] PostgreSQL 连接成功", zap.String("env", env))
	return db, nil
}
