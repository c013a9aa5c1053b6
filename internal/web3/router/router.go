// Package router 实现后台请求路由器 — 管道的核心状态机。
// 每个入站方法走调度表: 本地应答 / 会话鉴权应答 / 进入人工确认。
// 需要确认的方法挂入 RequestTable，直到确认事件或取消信号将其终结。
package router

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"sunbyte-wallet/internal/session"
	"sunbyte-wallet/internal/signing"
	"sunbyte-wallet/internal/web3/protocol"
	"sunbyte-wallet/internal/web3/transport"
	"sunbyte-wallet/pkg/errno"
	"sunbyte-wallet/pkg/logger"
	"sunbyte-wallet/pkg/monitor"
	"sunbyte-wallet/pkg/safe_random"
)

// 无真实链连接时的固定应答，与演示网络的取值保持一致
const (
	stubBlockNumber = "0x0"
	stubGasEstimate = "0x7530"      // 30000
	stubGasPrice    = "0x4A817C800" // 20 gwei
	stubCode        = "0x"
	stubTxCount     = "0x1"
)

// SigningBackend 路由器在确认阶段之前需要的签名服务子集
type SigningBackend interface {
	Balance(ctx context.Context, address string) (string, error)
	PrepareTransaction(ctx context.Context, fromAddress, toAddress, amount string) (*signing.UnsignedTx, error)
}

// UIOpener 拉起确认界面的出口: 先开弹窗，失败再退化为系统通知
type UIOpener interface {
	OpenPopup() error
	Notify(title, message string) error
}

// Confirmer 确认界面的入队出口，由确认控制器实现
type Confirmer interface {
	Enqueue(env protocol.ConfirmRequestEnvelope)
	Dismiss(requestID string)
}

// 确认界面的类型化载荷
type TransactionData struct {
	From       string              `json:"from"`
	UnsignedTx *signing.UnsignedTx `json:"unsignedTx"`
}

type MessageData struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

type TypedDataData struct {
	From      string      `json:"from"`
	TypedData interface{} `json:"typedData"`
}

// Options 路由器配置
type Options struct {
	ChainID         string // 十六进制链 ID，默认 "0x1"
	AllowChainStubs bool   // 链切换/添加是否按桩应答成功
}

type handlerFunc func(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error)

type Router struct {
	table     *RequestTable
	sessions  session.Store
	signer    SigningBackend
	ui        UIOpener
	confirmer Confirmer
	opts      Options

	port     transport.Port
	handlers map[string]handlerFunc
}

func New(table *RequestTable, sessions session.Store, signer SigningBackend, ui UIOpener, opts Options) *Router {
	if opts.ChainID == "" {
		opts.ChainID = "0x1"
	}
	r := &Router{
		table:    table,
		sessions: sessions,
		signer:   signer,
		ui:       ui,
		opts:     opts,
	}
	r.handlers = map[string]handlerFunc{
		"eth_chainId":                  r.handleChainID,
		"net_version":                  r.handleNetVersion,
		"sunbyte_checkConnection":      r.handleChainID,
		"eth_blockNumber":              r.handleBlockNumber,
		"eth_estimateGas":              r.handleEstimateGas,
		"eth_gasPrice":                 r.handleGasPrice,
		"eth_getCode":                  r.handleGetCode,
		"eth_getTransactionCount":      r.handleTxCount,
		"eth_getTransactionReceipt":    r.handleTxReceipt,
		"eth_getBalance":               r.handleGetBalance,
		"eth_accounts":                 r.handleAccounts,
		"eth_requestAccounts":          r.handleRequestAccounts,
		"eth_sendTransaction":          r.handleTransaction,
		"eth_signTransaction":          r.handleTransaction,
		"personal_sign":                r.handlePersonalSign,
		"eth_sign":                     r.handleEthSign,
		"eth_signTypedData":            r.handleSignTypedData,
		"eth_signTypedData_v4":         r.handleSignTypedData,
		"wallet_switchEthereumChain":   r.handleChainStub,
		"wallet_addEthereumChain":      r.handleChainStub,
	}
	return r
}

// SetConfirmer 接入确认控制器 (控制器反向持有路由器，构造后再接线)
func (r *Router) SetConfirmer(c Confirmer) {
	r.confirmer = c
}

// SetUI 接入确认界面出口。网关同时依赖路由器，构造后再接线。
func (r *Router) SetUI(ui UIOpener) {
	r.ui = ui
}

// Table 暴露挂起请求表，供网关列出待确认项
func (r *Router) Table() *RequestTable {
	return r.table
}

// Bind 接通与内容中转器相连的端口，入站请求各自在独立 goroutine 中处理,
// 不同 id 的请求之间不保证顺序 (按 id 关联即可)。
func (r *Router) Bind(port transport.Port) {
	r.port = port
	port.OnMessage(func(msg transport.Message) {
		switch env := msg.Env.(type) {
		case protocol.RequestEnvelope:
			go r.dispatch(context.Background(), env)
		case protocol.CancelEnvelope:
			go r.HandleCancel(env)
		}
	})
}

func (r *Router) dispatch(ctx context.Context, env protocol.RequestEnvelope) {
	result, err := r.Handle(ctx, env)

	var res protocol.ResponseEnvelope
	if err != nil {
		res = protocol.NewErrorResponse(env.RequestID, err.Error())
	} else {
		res = protocol.NewResponse(env.RequestID, result)
	}
	if r.port != nil {
		if postErr := r.port.Post(transport.Message{Source: transport.SourceExtension, Env: res}); postErr != nil {
			logger.Error("[Router] 响应投递失败", zap.String("requestId", env.RequestID), zap.Error(postErr))
		}
	}
}

// Handle 同步执行一次方法调度，返回终态结果。
// 需要确认的方法会阻塞到确认事件或取消到达。
func (r *Router) Handle(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	handler, ok := r.handlers[env.Method]
	if !ok {
		r.countRequest(env.Method, "unsupported")
		return nil, errno.ErrUnsupportedMethod.WithMessage("Unsupported method: " + env.Method)
	}

	result, err := handler(ctx, env)
	if err != nil {
		r.countRequest(env.Method, "error")
		return nil, err
	}
	r.countRequest(env.Method, "ok")
	return result, nil
}

// HandleCancel 页面侧超时: 丢弃对应表项并撤下排队中的确认项。
// 未知 pageID 静默忽略。
func (r *Router) HandleCancel(env protocol.CancelEnvelope) {
	pr := r.table.ByPageID(env.RequestID)
	if pr == nil {
		return
	}
	logger.Warn("[Router] 页面取消挂起请求",
		zap.String("pageId", env.RequestID), zap.String("confirmId", pr.ID))
	if r.confirmer != nil {
		r.confirmer.Dismiss(pr.ID)
	}
	r.table.Settle(pr.ID, nil, errno.ErrTimeout)
}

// HandleConfirmResponse 确认界面的终态事件。
// 未知/过期 id 直接丢弃，不报错 (每个 id 只允许一个终态)。
func (r *Router) HandleConfirmResponse(env protocol.ConfirmResponseEnvelope) bool {
	var settled bool
	if env.Success {
		settled = r.table.Settle(env.RequestID, env.Result, nil)
	} else {
		msg := env.Error
		if msg == "" {
			msg = errno.ErrUserRejected.Message
		}
		settled = r.table.Settle(env.RequestID, nil, errno.ErrUserRejected.WithMessage(msg))
	}
	if !settled {
		logger.Debug("[Router] 丢弃过期确认事件", zap.String("requestId", env.RequestID))
	}
	return settled
}

// ---- 本地快速路径 ----

func (r *Router) handleChainID(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return r.opts.ChainID, nil
}

func (r *Router) handleNetVersion(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(r.opts.ChainID, "0x"), 16); !ok {
		return "1", nil
	}
	return n.String(), nil
}

func (r *Router) handleBlockNumber(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return stubBlockNumber, nil
}

func (r *Router) handleEstimateGas(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return stubGasEstimate, nil
}

func (r *Router) handleGasPrice(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return stubGasPrice, nil
}

func (r *Router) handleGetCode(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return stubCode, nil
}

func (r *Router) handleTxCount(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return stubTxCount, nil
}

func (r *Router) handleTxReceipt(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	return nil, nil
}

// handleGetBalance 经签名服务查余额并换算成 wei 十六进制。
// 任何失败都回落为 "0x0"，绝不向页面抛错。
func (r *Router) handleGetBalance(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	address, _ := paramString(env.Params, 0)
	if address == "" {
		return "0x0", nil
	}
	balance, err := r.signer.Balance(ctx, address)
	if err != nil {
		logger.Warn("[Router] 余额查询失败", zap.String("address", address), zap.Error(err))
		return "0x0", nil
	}
	return ethToWeiHex(balance), nil
}

// ---- 会话鉴权路径 ----

// handleAccounts 已登录返回 [地址]，否则返回空列表，绝不抛错
func (r *Router) handleAccounts(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	s, err := r.sessions.Get(ctx)
	if err != nil || !s.IsLoggedIn || s.WalletAddress == "" {
		return []string{}, nil
	}
	return []string{s.WalletAddress}, nil
}

// handleRequestAccounts 无钱包或未登录时拒绝 Unauthorized,
// 并恰好尝试一次拉起扩展界面让用户处理。
func (r *Router) handleRequestAccounts(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	s, err := r.sessions.Get(ctx)
	if err == nil && s.IsLoggedIn && s.WalletAddress != "" {
		return []string{s.WalletAddress}, nil
	}
	r.openSurface()
	return nil, errno.ErrUnauthorized.WithMessage("Unauthorized: no wallet connected or wallet is locked")
}

// ---- 人工确认路径 ----

func (r *Router) handleTransaction(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	tx, ok := paramObject(env.Params, 0)
	if !ok {
		return nil, errno.ErrBind.WithMessage("Invalid transaction parameters")
	}
	from, _ := tx["from"].(string)

	if err := r.authorizeAccount(ctx, from); err != nil {
		return nil, err
	}

	to, _ := tx["to"].(string)
	value, _ := tx["value"].(string)

	// 确认界面打开之前的上游失败直接拒绝，绝不开弹窗
	unsigned, err := r.signer.PrepareTransaction(ctx, from, to, weiHexToEth(value))
	if err != nil {
		logger.Error("[Router] 交易预构建失败", zap.Error(err))
		return nil, err
	}

	return r.awaitConfirmation(env, protocol.RequestTypeTransaction, &TransactionData{From: from, UnsignedTx: unsigned})
}

// handlePersonalSign params = [message, address]
func (r *Router) handlePersonalSign(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	message, _ := paramString(env.Params, 0)
	from, _ := paramString(env.Params, 1)

	if err := r.authorizeAccount(ctx, from); err != nil {
		return nil, err
	}
	return r.awaitConfirmation(env, protocol.RequestTypeMessage, &MessageData{From: from, Message: message})
}

// handleEthSign params = [address, message]，参数序与 personal_sign 相反
func (r *Router) handleEthSign(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	from, _ := paramString(env.Params, 0)
	message, _ := paramString(env.Params, 1)

	if err := r.authorizeAccount(ctx, from); err != nil {
		return nil, err
	}
	return r.awaitConfirmation(env, protocol.RequestTypeMessage, &MessageData{From: from, Message: message})
}

// handleSignTypedData 新旧两种参数序归一到同一条确认流:
// 旧版是 [typedData, address]，v4 是 [address, typedData]
func (r *Router) handleSignTypedData(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	var from string
	var typedData interface{}

	if addr, ok := paramString(env.Params, 0); ok && looksLikeAddress(addr) {
		from = addr
		if len(env.Params) > 1 {
			typedData = env.Params[1]
		}
	} else {
		if len(env.Params) > 0 {
			typedData = env.Params[0]
		}
		from, _ = paramString(env.Params, 1)
	}

	if err := r.authorizeAccount(ctx, from); err != nil {
		return nil, err
	}
	return r.awaitConfirmation(env, protocol.RequestTypeTypedData, &TypedDataData{From: from, TypedData: typedData})
}

// ---- 链管理桩 ----

func (r *Router) handleChainStub(ctx context.Context, env protocol.RequestEnvelope) (interface{}, error) {
	if !r.opts.AllowChainStubs {
		return nil, errno.ErrUnsupportedMethod.WithMessage("Unsupported method: " + env.Method)
	}
	// 显式的演示简化: 不做任何真实网络重配置，直接按成功应答
	logger.Warn("[Router] 链管理方法按桩应答成功", zap.String("method", env.Method))
	return nil, nil
}

// ---- 内部 ----

// authorizeAccount 目标账户必须大小写不敏感地等于会话钱包地址,
// 不匹配立即 Unauthorized，不创建任何确认表项。
func (r *Router) authorizeAccount(ctx context.Context, target string) error {
	s, err := r.sessions.Get(ctx)
	if err != nil {
		return errno.ErrUnauthorized
	}
	if !s.IsLoggedIn || s.WalletAddress == "" {
		return errno.ErrUnauthorized.WithMessage("Unauthorized: no wallet connected or wallet is locked")
	}
	if target != "" && !strings.EqualFold(target, s.WalletAddress) {
		return errno.ErrUnauthorized.WithMessage("Unauthorized: account mismatch")
	}
	return nil
}

// awaitConfirmation 铸造确认 id、挂表、拉起界面，阻塞到终态
func (r *Router) awaitConfirmation(env protocol.RequestEnvelope, requestType string, data interface{}) (interface{}, error) {
	id, err := safe_random.GenerateRandomHexString(16)
	if err != nil {
		return nil, errno.InternalServerError
	}

	pr := &PendingRequest{
		ID:          id,
		PageID:      env.RequestID,
		Method:      env.Method,
		RequestType: requestType,
		Data:        data,
		CreatedAt:   time.Now(),
	}
	if err := r.table.Add(pr); err != nil {
		return nil, err
	}

	r.openSurface()
	if r.confirmer != nil {
		r.confirmer.Enqueue(protocol.NewConfirmRequest(id, requestType, data))
	}

	logger.Info("[Router] 请求进入人工确认",
		zap.String("method", env.Method),
		zap.String("type", requestType),
		zap.String("confirmId", id))

	return pr.Wait()
}

// openSurface 恰好尝试一次: 先开弹窗，失败退化为系统通知
func (r *Router) openSurface() {
	if r.ui == nil {
		return
	}
	if err := r.ui.OpenPopup(); err == nil {
		return
	}
	if err := r.ui.Notify("SunByte Wallet", "有待处理的请求，请打开扩展确认"); err != nil {
		logger.Warn("[Router] 弹窗与通知均失败", zap.Error(err))
	}
}

func (r *Router) countRequest(method, outcome string) {
	if monitor.Business != nil {
		monitor.Business.Web3RequestsTotal.WithLabelValues(method, outcome).Inc()
	}
}

func paramString(params []interface{}, i int) (string, bool) {
	if i >= len(params) {
		return "", false
	}
	s, ok := params[i].(string)
	return s, ok
}

func paramObject(params []interface{}, i int) (map[string]interface{}, bool) {
	if i >= len(params) {
		return nil, false
	}
	m, ok := params[i].(map[string]interface{})
	return m, ok
}

func looksLikeAddress(s string) bool {
	return len(s) == 42 && strings.HasPrefix(s, "0x")
}

// ethToWeiHex "1.5" ETH -> "0x14d1120d7b160000"
func ethToWeiHex(eth string) string {
	d, err := decimal.NewFromString(eth)
	if err != nil {
		return "0x0"
	}
	wei := d.Mul(decimal.New(1, 18)).BigInt()
	if wei.Sign() <= 0 {
		return "0x0"
	}
	return "0x" + wei.Text(16)
}

// weiHexToEth "0xde0b6b3a7640000" -> "1"，非法输入回落为 "0"
func weiHexToEth(weiHex string) string {
	if weiHex == "" {
		return "0"
	}
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(weiHex, "0x"), 16); !ok {
		return "0"
	}
	return decimal.NewFromBigInt(n, -18).String()
}
