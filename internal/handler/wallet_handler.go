package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sunbyte-wallet/internal/handler/request"
	"sunbyte-wallet/internal/service/wallet"
	"sunbyte-wallet/pkg/errno"
)

// WalletHandler 钱包 HTTP 端点。
// 这是对外的签名服务契约: 顶层 JSON 载荷，错误统一为 {"error": msg},
// 状态码映射 400 参数 / 401 密码 / 404 地址 / 409 重复。
type WalletHandler struct {
	service *wallet.Service
}

func NewWalletHandler(service *wallet.Service) *WalletHandler {
	return &WalletHandler{service: service}
}

// Create godoc
// @Summary Create a new wallet
// @Description Generate a mnemonic, derive an Ethereum keypair and store it encrypted
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 201 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /wallet/create [post]
func (h *WalletHandler) Create(c *gin.Context) {
	var req request.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	result, err := h.service.Create(c.Request.Context(), req.Password)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"address": result.Address, "mnemonic": result.Mnemonic})
}

// ImportMnemonic godoc
// @Summary Import a wallet from a mnemonic phrase
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /wallet/import-mnemonic [post]
func (h *WalletHandler) ImportMnemonic(c *gin.Context) {
	var req request.ImportMnemonicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	address, err := h.service.ImportMnemonic(c.Request.Context(), req.Mnemonic, req.Password)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address})
}

// ImportPrivateKey godoc
// @Summary Import a wallet from a raw private key
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]string
// @Router /wallet/import-private-key [post]
func (h *WalletHandler) ImportPrivateKey(c *gin.Context) {
	var req request.ImportPrivateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	address, err := h.service.ImportPrivateKey(c.Request.Context(), req.PrivateKey, req.Password)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address})
}

// Balance godoc
// @Summary Get wallet balance in ETH
// @Tags wallet
// @Produce  json
// @Param address path string true "Wallet address"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /wallet/{address}/balance [get]
func (h *WalletHandler) Balance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.Param("address"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// PrepareTransaction godoc
// @Summary Build an unsigned transaction
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]interface{}
// @Router /wallet/prepare-transaction [post]
func (h *WalletHandler) PrepareTransaction(c *gin.Context) {
	var req request.PrepareTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	unsigned, err := h.service.PrepareTransaction(c.Request.Context(), req.FromAddress, req.ToAddress, req.Amount)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsignedTx": unsigned})
}

// SignAndBroadcast godoc
// @Summary Sign and broadcast a prepared transaction
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]string
// @Router /wallet/sign-and-broadcast [post]
func (h *WalletHandler) SignAndBroadcast(c *gin.Context) {
	var req request.SignAndBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	result, err := h.service.SignAndBroadcast(c.Request.Context(), req.FromAddress, req.Password, req.UnsignedTx)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txHash": result.TxHash, "blockNumber": result.BlockNumber})
}

// SignMessage godoc
// @Summary Sign a message (EIP-191)
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /wallet/sign-message [post]
func (h *WalletHandler) SignMessage(c *gin.Context) {
	var req request.SignMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	signature, err := h.service.SignMessage(c.Request.Context(), req.FromAddress, req.Password, req.Message)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// SignTypedData godoc
// @Summary Sign EIP-712 typed data
// @Tags wallet
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /wallet/sign-typed-data [post]
func (h *WalletHandler) SignTypedData(c *gin.Context) {
	var req request.SignTypedDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWith(c, errno.ErrBind)
		return
	}

	signature, err := h.service.SignTypedData(c.Request.Context(), req.FromAddress, req.Password, req.TypedData)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// abortWith 错误码 → HTTP 状态码
func abortWith(c *gin.Context, err error) {
	code, msg := errno.Decode(err)

	status := http.StatusInternalServerError
	switch code {
	case errno.ErrBind.Code, errno.ErrPasswordTooShort.Code,
		errno.ErrInvalidAddress.Code, errno.ErrInvalidMnemonic.Code,
		errno.ErrInsufficientFunds.Code:
		status = http.StatusBadRequest
	case errno.ErrPasswordIncorrect.Code:
		status = http.StatusUnauthorized
	case errno.ErrWalletNotFound.Code:
		status = http.StatusNotFound
	case errno.ErrWalletExists.Code:
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{"error": msg})
}
