// Package provider 实现注入页面上下文的 EIP-1193 Provider。
// 除 eth_chainId / net_version 本地应答外，所有方法经传输通道转发给扩展后台,
// 以单调递增的 requestId 关联响应，30 秒未响应则超时并向后台发送取消信号。
package provider

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sunbyte-wallet/internal/web3/protocol"
	"sunbyte-wallet/internal/web3/transport"
	"sunbyte-wallet/pkg/errno"
	"sunbyte-wallet/pkg/logger"
)

// 连接探测走普通转发路径，由路由器本地应答
const MethodCheckConnection = "sunbyte_checkConnection"

const DefaultRequestTimeout = 30 * time.Second

type outcome struct {
	result interface{}
	err    error
}

type pendingCall struct {
	done  chan outcome
	timer *time.Timer
}

// Options Provider 可选配置
type Options struct {
	ChainID string        // 默认 "0x1"
	Timeout time.Duration // 默认 30s
}

// Provider EIP-1193 请求入口。并发安全。
type Provider struct {
	port    transport.Port
	timeout time.Duration

	nextID  atomic.Int64
	mu      sync.Mutex
	chainID string // mu 保护: CheckConnection 可能并发刷新
	pending map[string]*pendingCall

	connected atomic.Bool

	Events *Emitter
}

func New(port transport.Port, opts Options) *Provider {
	if opts.ChainID == "" {
		opts.ChainID = "0x1"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	p := &Provider{
		port:    port,
		chainID: opts.ChainID,
		timeout: opts.Timeout,
		pending: make(map[string]*pendingCall),
		Events:  NewEmitter(),
	}
	port.OnMessage(p.handleMessage)
	return p
}

// ChainID 返回本地缓存的链 ID (十六进制字符串)
func (p *Provider) ChainID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainID
}

// IsConnected 报告最近一次连接探测的结果
func (p *Provider) IsConnected() bool {
	return p.connected.Load()
}

// Request 发起一次 RPC 调用，阻塞至响应、超时或 ctx 取消。
// 不校验任何参数，原样透传给后台。
func (p *Provider) Request(ctx context.Context, method string, params []interface{}) (interface{}, error) {
	// 纯本地快速路径，无需任何消息往返
	switch method {
	case "eth_chainId":
		return p.ChainID(), nil
	case "net_version":
		return p.netVersion(), nil
	}

	id := strconv.FormatInt(p.nextID.Add(1), 10)
	call := &pendingCall{done: make(chan outcome, 1)}

	// 定时器必须在表项发布前装好: 一旦表项可见，送达协程随时可能摘除并停表。
	// 超时后删除表项并向后台发送取消信号，之后到达的响应被静默丢弃。
	call.timer = time.AfterFunc(p.timeout, func() {
		if p.removePending(id) == nil {
			return
		}
		p.postCancel(id)
		logger.Warn("[Provider] 请求超时", zap.String("method", method), zap.String("requestId", id))
		call.done <- outcome{err: errno.ErrTimeout}
	})

	p.mu.Lock()
	p.pending[id] = call
	p.mu.Unlock()

	env := protocol.NewRequest(id, method, params)
	if err := p.port.Post(transport.Message{Source: transport.SourcePage, Env: env}); err != nil {
		if c := p.removePending(id); c != nil {
			c.timer.Stop()
		}
		logger.Error("[Provider] 请求投递失败", zap.String("method", method), zap.Error(err))
		return nil, errno.ErrUpstreamFailure
	}

	select {
	case out := <-call.done:
		if out.err == nil && method == "eth_requestAccounts" {
			p.connected.Store(true)
			p.Events.Emit(EventAccountsChanged, out.result)
		}
		return out.result, out.err
	case <-ctx.Done():
		if p.removePending(id) != nil {
			call.timer.Stop()
			p.postCancel(id)
		}
		return nil, ctx.Err()
	}
}

// CheckConnection 机会性刷新连接状态。任何失败都只把状态置为断开，不向调用方抛错。
func (p *Provider) CheckConnection(ctx context.Context) {
	result, err := p.Request(ctx, MethodCheckConnection, nil)
	if err != nil {
		p.connected.Store(false)
		return
	}
	if chainID, ok := result.(string); ok && chainID != "" {
		p.mu.Lock()
		p.chainID = chainID
		p.mu.Unlock()
	}
	p.connected.Store(true)
}

func (p *Provider) handleMessage(msg transport.Message) {
	res, ok := msg.Env.(protocol.ResponseEnvelope)
	if !ok {
		return
	}

	call := p.removePending(res.RequestID)
	if call == nil {
		// 已超时或未知 id 的迟到响应，丢弃
		logger.Debug("[Provider] 丢弃迟到响应", zap.String("requestId", res.RequestID))
		return
	}
	call.timer.Stop()

	// error 优先于 result，绝不两者同时生效
	if res.Error != "" {
		call.done <- outcome{err: errno.ErrUpstreamFailure.WithMessage(res.Error)}
		return
	}
	call.done <- outcome{result: res.Result}
}

// removePending 原子地摘除 pending 表项，不存在时返回 nil
func (p *Provider) removePending(id string) *pendingCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	call, ok := p.pending[id]
	if !ok {
		return nil
	}
	delete(p.pending, id)
	return call
}

func (p *Provider) postCancel(id string) {
	_ = p.port.Post(transport.Message{Source: transport.SourcePage, Env: protocol.NewCancel(id)})
}

func (p *Provider) netVersion() string {
	n, err := strconv.ParseInt(strings.TrimPrefix(p.ChainID(), "0x"), 16, 64)
	if err != nil {
		return "1"
	}
	return strconv.FormatInt(n, 10)
}
