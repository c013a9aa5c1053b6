package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"sunbyte-wallet/internal/handler"
	"sunbyte-wallet/internal/handler/response"
	"sunbyte-wallet/pkg/monitor"
)

// NewRouter 组装 HTTP 路由
func NewRouter(walletHandler *handler.WalletHandler) *gin.Engine {
	r := gin.Default()

	// Prometheus 请求指标
	r.Use(monitor.PrometheusMiddleware())

	// System endpoints
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 签名服务契约: 顶层 JSON 载荷
	walletGroup := r.Group("/wallet")
	{
		walletGroup.POST("/create", walletHandler.Create)
		walletGroup.POST("/import-mnemonic", walletHandler.ImportMnemonic)
		walletGroup.POST("/import-private-key", walletHandler.ImportPrivateKey)
		walletGroup.GET("/:address/balance", walletHandler.Balance)
		walletGroup.POST("/prepare-transaction", walletHandler.PrepareTransaction)
		walletGroup.POST("/sign-and-broadcast", walletHandler.SignAndBroadcast)
		walletGroup.POST("/sign-message", walletHandler.SignMessage)
		walletGroup.POST("/sign-typed-data", walletHandler.SignTypedData)
	}

	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/ping", func(c *gin.Context) {
			response.Success(c, gin.H{"message": "pong"})
		})
	}

	return r
}
