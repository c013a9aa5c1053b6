package request

import "sunbyte-wallet/internal/signing"

// 钱包 HTTP 端点的请求体定义

type CreateWalletRequest struct {
	Password string `json:"password" binding:"required"`
}

type ImportMnemonicRequest struct {
	Mnemonic string `json:"mnemonic" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ImportPrivateKeyRequest struct {
	PrivateKey string `json:"privateKey" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type PrepareTransactionRequest struct {
	FromAddress string `json:"fromAddress" binding:"required"`
	ToAddress   string `json:"toAddress" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
}

type SignAndBroadcastRequest struct {
	FromAddress string              `json:"fromAddress" binding:"required"`
	Password    string              `json:"password" binding:"required"`
	UnsignedTx  *signing.UnsignedTx `json:"unsignedTx" binding:"required"`
}

type SignMessageRequest struct {
	FromAddress string `json:"fromAddress" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Message     string `json:"message" binding:"required"`
}

type SignTypedDataRequest struct {
	FromAddress string      `json:"fromAddress" binding:"required"`
	Password    string      `json:"password" binding:"required"`
	TypedData   interface{} `json:"typedData" binding:"required"`
}
