// Package confirm 实现确认控制器 — 人工审批闸门。
// 一次只呈现一个待确认请求，其余 FIFO 排队；收集密码后调用签名服务,
// 并保证每个打开过的确认最终恰好发出一个终态事件 (批准/拒绝/关闭视同拒绝)。
package confirm

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"sunbyte-wallet/internal/signing"
	"sunbyte-wallet/internal/web3/protocol"
	"sunbyte-wallet/internal/web3/router"
	"sunbyte-wallet/pkg/errno"
	"sunbyte-wallet/pkg/logger"
	"sunbyte-wallet/pkg/monitor"
)

// Signer 确认阶段用到的签名服务子集
type Signer interface {
	SignAndBroadcast(ctx context.Context, fromAddress, password string, tx *signing.UnsignedTx) (*signing.BroadcastResult, error)
	SignMessage(ctx context.Context, fromAddress, password, message string) (string, error)
	SignTypedData(ctx context.Context, fromAddress, password string, typedData interface{}) (string, error)
	Balance(ctx context.Context, address string) (string, error)
}

// Responder 终态事件的接收方 (路由器)
type Responder interface {
	HandleConfirmResponse(env protocol.ConfirmResponseEnvelope) bool
}

// 控制器对外广播的事件名，网关转成 WebSocket 推送
const (
	EventQueued   = "queued"
	EventActive   = "active"
	EventApproved = "approved"
	EventRejected = "rejected"
	EventClosed   = "closed"
	EventError    = "error"
)

var (
	ErrNoActiveRequest  = errno.ErrBind.WithMessage("No confirmation request is active")
	ErrPasswordRequired = errno.ErrBind.WithMessage("Password is required")
	ErrProcessing       = errno.ErrBind.WithMessage("A signing round-trip is already in flight")
)

// DialogView 当前对话框的只读快照，供界面/网关展示
type DialogView struct {
	ID          string      `json:"id"`
	RequestType string      `json:"requestType"`
	Data        interface{} `json:"data"`
	CreatedAt   time.Time   `json:"createdAt"`
	Processing  bool        `json:"processing"`
	Sealed      bool        `json:"sealed"`
	LastError   string      `json:"lastError,omitempty"`
}

type activeDialog struct {
	env        protocol.ConfirmRequestEnvelope
	createdAt  time.Time
	processing bool
	sealed     bool // 终态已发出，等待用户手动关闭
	lastError  string
}

type Controller struct {
	signer    Signer
	responder Responder

	mu        sync.Mutex
	queue     []protocol.ConfirmRequestEnvelope
	active    *activeDialog
	listeners []func(event string, payload interface{})
}

func NewController(signer Signer, responder Responder) *Controller {
	return &Controller{signer: signer, responder: responder}
}

// OnEvent 注册事件监听 (队列变化、终态)，网关用
func (c *Controller) OnEvent(fn func(event string, payload interface{})) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Enqueue 实现路由器的 Confirmer 出口: 无活跃对话框则立即呈现，否则排队
func (c *Controller) Enqueue(env protocol.ConfirmRequestEnvelope) {
	c.mu.Lock()
	if c.active == nil {
		c.present(env)
	} else {
		c.queue = append(c.queue, env)
	}
	c.mu.Unlock()

	c.emit(EventQueued, env)
	logger.Info("[Confirm] 请求入队", zap.String("requestId", env.RequestID), zap.String("type", env.RequestType))
}

// Dismiss 页面侧取消: 不发终态事件地撤下指定请求 (路由器那边已终结)
func (c *Controller) Dismiss(requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil && c.active.env.RequestID == requestID {
		c.advanceLocked()
		return
	}
	for i, env := range c.queue {
		if env.RequestID == requestID {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

// Active 返回当前对话框快照，无活跃对话框时返回 nil
func (c *Controller) Active() *DialogView {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	return &DialogView{
		ID:          c.active.env.RequestID,
		RequestType: c.active.env.RequestType,
		Data:        c.active.env.Data,
		CreatedAt:   c.active.createdAt,
		Processing:  c.active.processing,
		Sealed:      c.active.sealed,
		LastError:   c.active.lastError,
	}
}

// QueueLen 排队中 (不含活跃) 的请求数
func (c *Controller) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Approve 用户批准: 校验密码非空后按类型调用签名服务。
// 成功 → 发成功终态并推进队列；失败 → 发失败终态但对话框保持打开,
// 此后对同一 id 的再次批准返回 ErrAlreadyResolved (终态只允许一个)。
func (c *Controller) Approve(ctx context.Context, password string) (interface{}, error) {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return nil, ErrNoActiveRequest
	}
	if c.active.processing {
		c.mu.Unlock()
		return nil, ErrProcessing
	}
	if c.active.sealed {
		c.mu.Unlock()
		return nil, errno.ErrAlreadyResolved
	}
	if password == "" {
		c.mu.Unlock()
		return nil, ErrPasswordRequired
	}
	c.active.processing = true
	env := c.active.env
	c.mu.Unlock()

	result, err := c.sign(ctx, env, password)

	c.mu.Lock()
	// 签名往返期间活跃项可能已被 Dismiss，此时终态无处可发
	if c.active == nil || c.active.env.RequestID != env.RequestID {
		c.mu.Unlock()
		return nil, errno.ErrAlreadyResolved
	}
	c.active.processing = false

	if err != nil {
		c.active.sealed = true
		c.active.lastError = err.Error()
		c.mu.Unlock()

		c.responder.HandleConfirmResponse(protocol.NewConfirmResponse(env.RequestID, false, nil, err.Error()))
		c.countDecision("failed")
		c.emit(EventError, map[string]interface{}{"requestId": env.RequestID, "error": err.Error()})
		logger.Warn("[Confirm] 签名失败", zap.String("requestId", env.RequestID), zap.Error(err))
		return nil, err
	}

	c.advanceLocked()
	c.mu.Unlock()

	c.responder.HandleConfirmResponse(protocol.NewConfirmResponse(env.RequestID, true, result, ""))
	c.countDecision("approved")
	c.emit(EventApproved, map[string]interface{}{"requestId": env.RequestID, "result": result})

	// 交易批准成功后恰好刷新一次余额
	if env.RequestType == protocol.RequestTypeTransaction {
		c.refreshBalance(ctx, env)
	}

	logger.Info("[Confirm] 请求已批准 ✅", zap.String("requestId", env.RequestID))
	return result, nil
}

// Reject 用户显式拒绝: 无条件发 "User rejected the request" 终态并推进队列
func (c *Controller) Reject() error {
	return c.terminate(EventRejected, "rejected")
}

// Close 非拒绝方式关闭对话框。为保证页面侧 promise 不悬挂,
// 未发过终态的请求按隐式拒绝处理；已密封的 (批准失败后) 只推进队列。
func (c *Controller) Close() error {
	return c.terminate(EventClosed, "closed")
}

func (c *Controller) terminate(event, decision string) error {
	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ErrNoActiveRequest
	}
	if c.active.processing {
		c.mu.Unlock()
		return ErrProcessing
	}
	env := c.active.env
	sealed := c.active.sealed
	c.advanceLocked()
	c.mu.Unlock()

	if !sealed {
		c.responder.HandleConfirmResponse(protocol.NewConfirmResponse(env.RequestID, false, nil, errno.ErrUserRejected.Message))
	}
	c.countDecision(decision)
	c.emit(event, map[string]interface{}{"requestId": env.RequestID})
	logger.Info("[Confirm] 对话框关闭", zap.String("requestId", env.RequestID), zap.String("decision", decision))
	return nil
}

// sign 按请求类型分发签名调用
func (c *Controller) sign(ctx context.Context, env protocol.ConfirmRequestEnvelope, password string) (interface{}, error) {
	switch env.RequestType {
	case protocol.RequestTypeTransaction:
		data, err := toTransactionData(env.Data)
		if err != nil {
			return nil, err
		}
		res, err := c.signer.SignAndBroadcast(ctx, data.From, password, data.UnsignedTx)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"txHash": res.TxHash, "blockNumber": res.BlockNumber}, nil

	case protocol.RequestTypeMessage:
		data, err := toMessageData(env.Data)
		if err != nil {
			return nil, err
		}
		return c.signer.SignMessage(ctx, data.From, password, data.Message)

	case protocol.RequestTypeTypedData:
		data, err := toTypedDataData(env.Data)
		if err != nil {
			return nil, err
		}
		return c.signer.SignTypedData(ctx, data.From, password, data.TypedData)

	default:
		return nil, errno.ErrUnsupportedMethod.WithMessage("Unsupported confirmation type: " + env.RequestType)
	}
}

func (c *Controller) refreshBalance(ctx context.Context, env protocol.ConfirmRequestEnvelope) {
	data, err := toTransactionData(env.Data)
	if err != nil {
		return
	}
	if _, err := c.signer.Balance(ctx, data.From); err != nil {
		logger.Debug("[Confirm] 余额刷新失败", zap.Error(err))
		return
	}
	if monitor.Business != nil {
		monitor.Business.BalanceRefreshTotal.Inc()
	}
}

// caller must hold c.mu
func (c *Controller) advanceLocked() {
	c.active = nil
	if len(c.queue) == 0 {
		return
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	c.present(next)
	go c.emit(EventActive, next)
}

// caller must hold c.mu。密码与错误状态随每次呈现清零。
func (c *Controller) present(env protocol.ConfirmRequestEnvelope) {
	c.active = &activeDialog{env: env, createdAt: time.Now()}
}

func (c *Controller) emit(event string, payload interface{}) {
	c.mu.Lock()
	fns := make([]func(event string, payload interface{}), len(c.listeners))
	copy(fns, c.listeners)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(event, payload)
	}
}

func (c *Controller) countDecision(decision string) {
	if monitor.Business != nil {
		monitor.Business.ConfirmationsTotal.WithLabelValues(decision).Inc()
	}
}

// ---- 载荷归一化 ----
// 同进程传来的是类型化载荷，经网关 JSON 反序列化后是 map，两种都要接住。

func toTransactionData(v interface{}) (*router.TransactionData, error) {
	if data, ok := v.(*router.TransactionData); ok {
		return data, nil
	}
	var data router.TransactionData
	if err := remarshal(v, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func toMessageData(v interface{}) (*router.MessageData, error) {
	if data, ok := v.(*router.MessageData); ok {
		return data, nil
	}
	var data router.MessageData
	if err := remarshal(v, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func toTypedDataData(v interface{}) (*router.TypedDataData, error) {
	if data, ok := v.(*router.TypedDataData); ok {
		return data, nil
	}
	var data router.TypedDataData
	if err := remarshal(v, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func remarshal(v interface{}, out interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errno.ErrBind.WithMessage("Malformed confirmation payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errno.ErrBind.WithMessage("Malformed confirmation payload")
	}
	return nil
}
