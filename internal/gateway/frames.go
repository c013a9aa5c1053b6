package gateway

import "encoding/json"

// WebSocket 帧: 请求/响应按 id 关联，事件单向推送
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     string      `json:"id"`
	OK     bool        `json:"ok"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// 推送事件名
const (
	EventRequestQueued   = "web3.request.queued"
	EventRequestResolved = "web3.request.resolved"
	EventUIOpen          = "ui.open"
)
