package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sunbyte-wallet/internal/gateway"
	"sunbyte-wallet/internal/session"
	"sunbyte-wallet/internal/signing"
	"sunbyte-wallet/internal/web3/confirm"
	"sunbyte-wallet/internal/web3/provider"
	"sunbyte-wallet/internal/web3/relay"
	"sunbyte-wallet/internal/web3/router"
	"sunbyte-wallet/internal/web3/transport"

	"sunbyte-wallet/pkg/config"
	"sunbyte-wallet/pkg/database"
	"sunbyte-wallet/pkg/logger"
	"sunbyte-wallet/pkg/monitor"
)

// extension-host 在单个进程里跑通整条请求管道:
// 页面 Provider -> 内容中转器 -> 后台路由器 -> 确认网关 (WebSocket)
// 并暴露一个演示用的 /rpc 端点扮演 dApp 页面。
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 初始化监控指标
	monitor.Init()

	// 3. 会话存储: Redis 可用则持久化，否则退化为内存
	var sessions session.Store
	if rdb, err := database.ConnectRedis(config.Global.Redis.Addr, config.Global.Redis.Password, config.Global.Redis.DB); err == nil {
		sessions = session.NewRedisStore(rdb)
		logger.Info("会话存储: Redis", zap.String("addr", config.Global.Redis.Addr))
	} else {
		sessions = session.NewMemoryStore()
		logger.Warn("Redis 不可用，会话存储退化为内存", zap.Error(err))
	}

	// 4. 签名服务客户端
	signer := signing.NewClient(config.Global.Signing.BaseURL)

	// 5. 后台路由器 + 确认控制器 + WebSocket 网关
	table := router.NewRequestTable()
	rt := router.New(table, sessions, signer, nil, router.Options{
		ChainID:         config.Global.Provider.ChainID,
		AllowChainStubs: config.Global.Provider.AllowChainStubs,
	})
	controller := confirm.NewController(signer, rt)
	rt.SetConfirmer(controller)

	// 网关既是确认界面的入口，也是路由器拉起界面的出口
	gw := gateway.New(controller, rt, sessions)
	rt.SetUI(gw)

	go func() {
		if err := gw.Run(":" + config.Global.Gateway.WsPort); err != nil {
			logger.Fatal("网关启动失败", zap.Error(err))
		}
	}()

	// 6. 接通传输管道: 页面 <-> 中转器 <-> 后台
	pagePort, relayPageSide := transport.NewPipe()
	relayBgSide, bgPort := transport.NewPipe()
	relay.New(relayPageSide, relayBgSide).Attach()
	rt.Bind(bgPort)

	timeout := time.Duration(config.Global.Provider.RequestTimeoutMs) * time.Millisecond
	web3 := provider.New(pagePort, provider.Options{
		ChainID: config.Global.Provider.ChainID,
		Timeout: timeout,
	})
	web3.CheckConnection(context.Background())

	// 7. 演示端点: 扮演 dApp 页面发起 EIP-1193 调用
	engine := gin.Default()
	engine.Use(monitor.PrometheusMiddleware())
	engine.POST("/rpc", func(c *gin.Context) {
		var req struct {
			Method string        `json:"method" binding:"required"`
			Params []interface{} `json:"params"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "method is required"})
			return
		}

		result, err := web3.Request(c.Request.Context(), req.Method, req.Params)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": result})
	})

	logger.Info("extension-host 启动",
		zap.String("rpc_port", config.Global.App.HttpPort),
		zap.String("ws_port", config.Global.Gateway.WsPort))
	if err := engine.Run(":" + config.Global.App.HttpPort); err != nil {
		logger.Fatal("HTTP 启动失败", zap.Error(err))
	}
}
