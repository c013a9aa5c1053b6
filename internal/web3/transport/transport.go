// Package transport 抽象信封在页面、内容中转器、后台之间的传输通道。
// 生产环境对应浏览器消息端口，这里用 channel 实现同进程版本，便于测试替换。
package transport

import (
	"sync"

	"sunbyte-wallet/internal/web3/protocol"
)

// Message sources
const (
	SourcePage      = "page"
	SourceExtension = "extension"
	SourceExternal  = "external"
)

// Message 带来源标记的信封，中转器按 source 过滤
type Message struct {
	Source string
	Env    protocol.Envelope
}

// Port 是一条双向消息通道的一端
type Port interface {
	// Post 向对端发送消息，通道已关闭时返回 error
	Post(msg Message) error
	// OnMessage 注册接收回调，可多次调用，按注册顺序依次触发
	OnMessage(fn func(msg Message))
	// Close 关闭通道，幂等
	Close()
}

type pipeEnd struct {
	mu       sync.Mutex
	peer     *pipeEnd
	handlers []func(msg Message)
	sendCh   chan Message
	done     chan struct{}
	closed   bool
}

// NewPipe 创建一对互联的端口。一端 Post 的消息投递到另一端的回调。
// 投递经缓冲 channel 异步进行，避免回调里再 Post 造成死锁。
func NewPipe() (Port, Port) {
	a := &pipeEnd{sendCh: make(chan Message, 100), done: make(chan struct{})}
	b := &pipeEnd{sendCh: make(chan Message, 100), done: make(chan struct{})}
	a.peer = b
	b.peer = a

	go a.deliverLoop()
	go b.deliverLoop()

	return a, b
}

// deliverLoop 把对端发来的消息逐条派发给本端回调
func (p *pipeEnd) deliverLoop() {
	for {
		select {
		case msg := <-p.sendCh:
			p.mu.Lock()
			handlers := make([]func(msg Message), len(p.handlers))
			copy(handlers, p.handlers)
			p.mu.Unlock()
			for _, fn := range handlers {
				fn(msg)
			}
		case <-p.done:
			return
		}
	}
}

func (p *pipeEnd) Post(msg Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPortClosed
	}
	peer := p.peer
	p.mu.Unlock()

	select {
	case peer.sendCh <- msg:
		return nil
	case <-peer.done:
		return ErrPortClosed
	}
}

func (p *pipeEnd) OnMessage(fn func(msg Message)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers = append(p.handlers, fn)
}

func (p *pipeEnd) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.done)
}
