// Package protocol 定义 Web3 请求管道跨上下文传递的消息信封。
// 页面 <-> 扩展方向复用原始的 SUNBYTE_* 标签，
// 后台 <-> 确认弹窗方向复用 WEB3_* 标签。
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope type tags
const (
	TypeRequest         = "SUNBYTE_REQUEST"
	TypeResponse        = "SUNBYTE_RESPONSE"
	TypeCancel          = "SUNBYTE_CANCEL"
	TypeConfirmRequest  = "WEB3_REQUEST"
	TypeConfirmResponse = "WEB3_RESPONSE"
)

// Confirmation request types
const (
	RequestTypeTransaction = "transaction"
	RequestTypeMessage     = "message"
	RequestTypeTypedData   = "typedData"
)

// Envelope 是所有信封的标签联合 (tagged union)。
// Decode 按 type 字段穷举匹配，未知类型报错而不是探测属性。
type Envelope interface {
	Kind() string
}

// RequestEnvelope 页面发往扩展的 RPC 请求
type RequestEnvelope struct {
	Type      string        `json:"type"` // always "SUNBYTE_REQUEST"
	Method    string        `json:"method"`
	Params    []interface{} `json:"params"`
	RequestID string        `json:"requestId"`
}

func (RequestEnvelope) Kind() string { return TypeRequest }

// ResponseEnvelope 扩展发回页面的响应 (result 与 error 互斥)
type ResponseEnvelope struct {
	Type      string      `json:"type"` // always "SUNBYTE_RESPONSE"
	RequestID string      `json:"requestId"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (ResponseEnvelope) Kind() string { return TypeResponse }

// CancelEnvelope 页面侧超时后发出的取消信号，
// 路由器据此丢弃 pending 表项并撤下排队中的确认弹窗。
type CancelEnvelope struct {
	Type      string `json:"type"` // always "SUNBYTE_CANCEL"
	RequestID string `json:"requestId"`
}

func (CancelEnvelope) Kind() string { return TypeCancel }

// ConfirmRequestEnvelope 路由器发往确认弹窗的二阶段请求
type ConfirmRequestEnvelope struct {
	Type        string      `json:"type"`        // always "WEB3_REQUEST"
	RequestType string      `json:"requestType"` // transaction | message | typedData
	RequestID   string      `json:"requestId"`
	Data        interface{} `json:"data"`
}

func (ConfirmRequestEnvelope) Kind() string { return TypeConfirmRequest }

// ConfirmResponseEnvelope 确认弹窗发回路由器的终态事件
type ConfirmResponseEnvelope struct {
	Type      string      `json:"type"` // always "WEB3_RESPONSE"
	RequestID string      `json:"requestId"`
	Success   bool        `json:"success"`
	Result    interface{} `json:"result,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (ConfirmResponseEnvelope) Kind() string { return TypeConfirmResponse }

// NewRequest creates a page request envelope.
func NewRequest(id, method string, params []interface{}) RequestEnvelope {
	if params == nil {
		params = []interface{}{}
	}
	return RequestEnvelope{Type: TypeRequest, Method: method, Params: params, RequestID: id}
}

// NewResponse creates a success response envelope.
func NewResponse(id string, result interface{}) ResponseEnvelope {
	return ResponseEnvelope{Type: TypeResponse, RequestID: id, Result: result}
}

// NewErrorResponse creates an error response envelope.
func NewErrorResponse(id string, errMsg string) ResponseEnvelope {
	return ResponseEnvelope{Type: TypeResponse, RequestID: id, Error: errMsg}
}

// NewCancel creates a cancellation envelope.
func NewCancel(id string) CancelEnvelope {
	return CancelEnvelope{Type: TypeCancel, RequestID: id}
}

// NewConfirmRequest creates a confirmation request envelope.
func NewConfirmRequest(id, requestType string, data interface{}) ConfirmRequestEnvelope {
	return ConfirmRequestEnvelope{Type: TypeConfirmRequest, RequestType: requestType, RequestID: id, Data: data}
}

// NewConfirmResponse creates a confirmation result envelope.
func NewConfirmResponse(id string, success bool, result interface{}, errMsg string) ConfirmResponseEnvelope {
	return ConfirmResponseEnvelope{Type: TypeConfirmResponse, RequestID: id, Success: success, Result: result, Error: errMsg}
}

// ParseType extracts the envelope type tag from raw JSON bytes.
func ParseType(data []byte) (string, error) {
	var raw struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", err
	}
	return raw.Type, nil
}

// Decode 解析原始 JSON 为具体信封类型。
// 穷举匹配所有已知 type 标签，未知标签返回错误。
func Decode(data []byte) (Envelope, error) {
	tag, err := ParseType(data)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch tag {
	case TypeRequest:
		var env RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return env, nil
	case TypeResponse:
		var env ResponseEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return env, nil
	case TypeCancel:
		var env CancelEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return env, nil
	case TypeConfirmRequest:
		var env ConfirmRequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return env, nil
	case TypeConfirmResponse:
		var env ConfirmResponseEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		return env, nil
	default:
		return nil, fmt.Errorf("unknown envelope type: %q", tag)
	}
}
