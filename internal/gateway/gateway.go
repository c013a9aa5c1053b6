// Package gateway 把确认控制器和会话状态暴露给确认界面 (WebSocket)。
// 界面连上来之后列出待确认项、提交批准/拒绝，并接收队列变化的推送。
// 同时它充当路由器的 UIOpener: 有界面在线时推送 ui.open，否则退化为系统通知。
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sunbyte-wallet/internal/session"
	"sunbyte-wallet/internal/web3/confirm"
	"sunbyte-wallet/internal/web3/router"
	"sunbyte-wallet/pkg/errno"
	"sunbyte-wallet/pkg/logger"
)

const writeWait = 10 * time.Second

type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

type Gateway struct {
	controller *confirm.Controller
	rt         *router.Router
	sessions   session.Store

	upgrader websocket.Upgrader
	methods  map[string]methodFunc

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // 串行化写
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func New(controller *confirm.Controller, rt *router.Router, sessions session.Store) *Gateway {
	g := &Gateway{
		controller: controller,
		rt:         rt,
		sessions:   sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // 本机演示网关，不做跨域限制
		},
		clients: make(map[*client]struct{}),
	}
	g.methods = map[string]methodFunc{
		"web3.pending.list":    g.handlePendingList,
		"web3.confirm.active":  g.handleConfirmActive,
		"web3.confirm.approve": g.handleApprove,
		"web3.confirm.reject":  g.handleReject,
		"web3.confirm.close":   g.handleClose,
		"session.status":       g.handleSessionStatus,
		"session.login":        g.handleLogin,
		"session.logout":       g.handleLogout,
	}

	// 队列变化 → 广播给所有在线界面
	controller.OnEvent(func(event string, payload interface{}) {
		switch event {
		case confirm.EventQueued, confirm.EventActive:
			g.broadcast(Event{Event: EventRequestQueued, Payload: payload})
		case confirm.EventApproved, confirm.EventRejected, confirm.EventClosed, confirm.EventError:
			g.broadcast(Event{Event: EventRequestResolved, Payload: map[string]interface{}{"event": event, "data": payload}})
		}
	})
	return g
}

// Handler 挂到 HTTP mux 的升级入口
func (g *Gateway) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("[Gateway] 升级失败", zap.Error(err))
			return
		}
		g.serve(conn)
	})
}

// Run 独立监听，阻塞运行
func (g *Gateway) Run(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", g.Handler())
	logger.Info("[Gateway] WebSocket 网关启动", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func (g *Gateway) serve(conn *websocket.Conn) {
	cl := &client{conn: conn}
	g.mu.Lock()
	g.clients[cl] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.clients, cl)
		g.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("[Gateway] 连接异常断开", zap.Error(err))
			}
			return
		}
		g.handle(cl, req)
	}
}

func (g *Gateway) handle(cl *client, req Request) {
	method, ok := g.methods[req.Method]
	if !ok {
		_ = cl.write(Response{ID: req.ID, OK: false, Error: "unknown method: " + req.Method})
		return
	}

	result, err := method(context.Background(), req.Params)
	if err != nil {
		_, msg := errno.Decode(err)
		_ = cl.write(Response{ID: req.ID, OK: false, Error: msg})
		return
	}
	_ = cl.write(Response{ID: req.ID, OK: true, Result: result})
}

func (g *Gateway) broadcast(v interface{}) {
	g.mu.Lock()
	clients := make([]*client, 0, len(g.clients))
	for cl := range g.clients {
		clients = append(clients, cl)
	}
	g.mu.Unlock()

	for _, cl := range clients {
		if err := cl.write(v); err != nil {
			logger.Debug("[Gateway] 推送失败", zap.Error(err))
		}
	}
}

// ---- UIOpener: 路由器拉起确认界面的出口 ----

// OpenPopup 有在线界面时推送 ui.open 事件；没有任何界面连接时报错,
// 让路由器退化为系统通知。
func (g *Gateway) OpenPopup() error {
	g.mu.Lock()
	n := len(g.clients)
	g.mu.Unlock()
	if n == 0 {
		return errno.ErrUpstreamFailure.WithMessage("no confirmation UI connected")
	}
	g.broadcast(Event{Event: EventUIOpen})
	return nil
}

// Notify 系统通知的演示实现: 落日志
func (g *Gateway) Notify(title, message string) error {
	logger.Info("[Gateway] 系统通知 ⚠️", zap.String("title", title), zap.String("message", message))
	return nil
}

// ---- 方法处理器 ----

func (g *Gateway) handlePendingList(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	type item struct {
		ID          string      `json:"id"`
		Method      string      `json:"method"`
		RequestType string      `json:"requestType"`
		Data        interface{} `json:"data"`
		CreatedAt   time.Time   `json:"createdAt"`
	}
	pending := g.rt.Table().List()
	out := make([]item, 0, len(pending))
	for _, pr := range pending {
		out = append(out, item{ID: pr.ID, Method: pr.Method, RequestType: pr.RequestType, Data: pr.Data, CreatedAt: pr.CreatedAt})
	}
	return out, nil
}

func (g *Gateway) handleConfirmActive(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return g.controller.Active(), nil
}

func (g *Gateway) handleApprove(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var body struct {
		Password string `json:"password"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &body); err != nil {
			return nil, errno.ErrBind
		}
	}
	return g.controller.Approve(ctx, body.Password)
}

func (g *Gateway) handleReject(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return nil, g.controller.Reject()
}

func (g *Gateway) handleClose(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return nil, g.controller.Close()
}

func (g *Gateway) handleSessionStatus(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return g.sessions.Get(ctx)
}

func (g *Gateway) handleLogin(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var body struct {
		WalletAddress string `json:"walletAddress"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &body); err != nil {
			return nil, errno.ErrBind
		}
	}
	if body.WalletAddress != "" {
		if err := g.sessions.SetWalletAddress(ctx, body.WalletAddress); err != nil {
			return nil, err
		}
	}
	if err := g.sessions.SetLoggedIn(ctx, true); err != nil {
		return nil, err
	}
	return g.sessions.Get(ctx)
}

func (g *Gateway) handleLogout(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	if err := g.sessions.SetLoggedIn(ctx, false); err != nil {
		return nil, err
	}
	return g.sessions.Get(ctx)
}
