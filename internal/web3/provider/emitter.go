package provider

import "sync"

// Provider event names
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
)

// Emitter 提供 EIP-1193 风格的事件订阅面 (on/removeListener/emit)。
// 仅做观察者注册，与请求/响应关联无关。
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[string]map[int]func(args ...interface{})
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[string]map[int]func(args ...interface{}))}
}

// On 注册监听器，返回用于 RemoveListener 的句柄
func (e *Emitter) On(event string, fn func(args ...interface{})) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[int]func(args ...interface{}))
	}
	e.listeners[event][e.nextID] = fn
	return e.nextID
}

// RemoveListener 注销监听器，句柄不存在时为空操作
func (e *Emitter) RemoveListener(event string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners[event], id)
}

// Emit 同步触发某事件的全部监听器
func (e *Emitter) Emit(event string, args ...interface{}) {
	e.mu.Lock()
	fns := make([]func(args ...interface{}), 0, len(e.listeners[event]))
	for _, fn := range e.listeners[event] {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(args...)
	}
}
