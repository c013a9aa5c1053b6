// Package relay 实现内容中转器: 把页面侧信封原样转发给后台，
// 并把后台响应原样转回页面。不解析、不改写任何载荷。
package relay

import (
	"sync/atomic"

	"go.uber.org/zap"

	"sunbyte-wallet/internal/web3/protocol"
	"sunbyte-wallet/internal/web3/transport"
	"sunbyte-wallet/pkg/logger"
)

type Relay struct {
	pagePort transport.Port
	bgPort   transport.Port
	attached atomic.Bool
}

func New(pagePort, bgPort transport.Port) *Relay {
	return &Relay{pagePort: pagePort, bgPort: bgPort}
}

// Attach 接通双向转发。幂等: 重复调用返回 false 且不重复注册,
// 对应"页面已注入 provider 时不再注入第二个"的检查。
func (r *Relay) Attach() bool {
	if !r.attached.CompareAndSwap(false, true) {
		logger.Debug("[Relay] 已接通，跳过重复注入")
		return false
	}

	r.pagePort.OnMessage(r.forwardToBackground)
	r.bgPort.OnMessage(r.forwardToPage)
	return true
}

// forwardToBackground 只接受来自页面自身窗口的请求/取消信封
func (r *Relay) forwardToBackground(msg transport.Message) {
	if msg.Source != transport.SourcePage {
		return
	}
	switch msg.Env.(type) {
	case protocol.RequestEnvelope, protocol.CancelEnvelope:
	default:
		return
	}
	if err := r.bgPort.Post(msg); err != nil {
		logger.Error("[Relay] 转发后台失败", zap.Error(err))
	}
}

// forwardToPage 把后台响应带原 requestId 原样转回页面
func (r *Relay) forwardToPage(msg transport.Message) {
	res, ok := msg.Env.(protocol.ResponseEnvelope)
	if !ok {
		return
	}
	if err := r.pagePort.Post(transport.Message{Source: transport.SourceExtension, Env: res}); err != nil {
		logger.Error("[Relay] 转发页面失败", zap.Error(err))
	}
}
