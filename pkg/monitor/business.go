package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	Web3RequestsTotal      *prometheus.CounterVec // 按 method/outcome 统计管道请求
	Web3PendingRequests    prometheus.Gauge       // 路由器待确认请求数
	ConfirmationsTotal     *prometheus.CounterVec // 按 decision (approved/rejected/closed) 统计
	BalanceRefreshTotal    prometheus.Counter
	BroadcastSuccessTotal  *prometheus.CounterVec
	SigningErrorsTotal     *prometheus.CounterVec // 按 endpoint 统计签名服务错误
	WalletCreatedTotal     prometheus.Counter
}

// Global Metrics Instance
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		Web3RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "web3_requests_total",
			Help: "Total number of Web3 provider requests routed",
		}, []string{"method", "outcome"}),
		Web3PendingRequests: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "web3_pending_requests",
			Help: "Number of requests currently awaiting user confirmation",
		}),
		ConfirmationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "web3_confirmations_total",
			Help: "Total number of confirmation dialog resolutions",
		}, []string{"decision"}),
		BalanceRefreshTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "web3_balance_refresh_total",
			Help: "Total number of balance refreshes after transactions",
		}),
		BroadcastSuccessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_broadcast_success_total",
			Help: "Total number of successfully broadcast transactions",
		}, []string{"chain"}),
		SigningErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wallet_signing_errors_total",
			Help: "Total number of signing service errors",
		}, []string{"endpoint"}),
		WalletCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wallet_created_total",
			Help: "The total number of created wallets",
		}),
	}
}
