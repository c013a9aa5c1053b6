package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet 托管钱包表: 私钥加密落盘，这里只记索引与校验和
type Wallet struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Address      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_wallet_address" json:"address"`
	KeystorePath string    `gorm:"type:varchar(255);not null" json:"keystore_path"`
	Checksum     string    `gorm:"type:varchar(64);not null" json:"checksum"` // keystore 文件 BLAKE3 校验和
	Source       string    `gorm:"type:varchar(20);not null" json:"source"`   // created, mnemonic, private_key
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EventLog 钱包事件审计表，由 audit 消费者从 MQ 落库
type EventLog struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventType  string    `gorm:"type:varchar(40);not null;index:idx_eventlog_type" json:"event_type"` // wallet.created, wallet.imported, tx.broadcast
	Address    string    `gorm:"type:varchar(64);not null;index:idx_eventlog_address" json:"address"`
	TxHash     string    `gorm:"type:varchar(255)" json:"tx_hash,omitempty"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransactionLog 广播记录表
type TransactionLog struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	FromAddress string          `gorm:"type:varchar(64);not null;index" json:"from_address"`
	ToAddress   string          `gorm:"type:varchar(64);not null" json:"to_address"`
	Amount      decimal.Decimal `gorm:"type:decimal(32,18);not null" json:"amount"`
	TxHash      string          `gorm:"type:varchar(255);not null;uniqueIndex:idx_txlog_hash" json:"tx_hash"`
	BlockNumber uint64          `gorm:"not null;default:0" json:"block_number"`
	Status      string          `gorm:"type:varchar(20);not null" json:"status"` // broadcast, simulated
	CreatedAt   time.Time       `json:"created_at"`
}
