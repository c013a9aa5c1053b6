package model

// AllModels AutoMigrate 用的模型清单
func AllModels() []interface{} {
	return []interface{}{
		&Wallet{},
		&TransactionLog{},
		&EventLog{},
	}
}
