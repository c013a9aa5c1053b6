package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunbyte-wallet/internal/web3/protocol"
	"sunbyte-wallet/internal/web3/transport"
	"sunbyte-wallet/pkg/errno"
)

// fakeBackground 扮演扩展后台: 记录收到的信封，并按脚本回包
type fakeBackground struct {
	port transport.Port

	mu       sync.Mutex
	requests []protocol.RequestEnvelope
	cancels  []protocol.CancelEnvelope

	respond func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope
}

func newFakeBackground(port transport.Port) *fakeBackground {
	f := &fakeBackground{port: port}
	port.OnMessage(func(msg transport.Message) {
		switch env := msg.Env.(type) {
		case protocol.RequestEnvelope:
			f.mu.Lock()
			f.requests = append(f.requests, env)
			respond := f.respond
			f.mu.Unlock()
			if respond != nil {
				if res := respond(env); res != nil {
					_ = port.Post(transport.Message{Source: transport.SourceExtension, Env: *res})
				}
			}
		case protocol.CancelEnvelope:
			f.mu.Lock()
			f.cancels = append(f.cancels, env)
			f.mu.Unlock()
		}
	})
	return f
}

func (f *fakeBackground) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancels)
}

func TestLocalFastPaths(t *testing.T) {
	pagePort, _ := transport.NewPipe()
	defer pagePort.Close()
	p := New(pagePort, Options{ChainID: "0x1"})

	// 本地应答，不应有任何消息往返
	result, err := p.Request(context.Background(), "eth_chainId", nil)
	require.NoError(t, err)
	assert.Equal(t, "0x1", result)

	result, err = p.Request(context.Background(), "net_version", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", result)
}

func TestRequestResponseCorrelation(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		res := protocol.NewResponse(req.RequestID, "0x4a817c800")
		return &res
	}

	p := New(pagePort, Options{})
	result, err := p.Request(context.Background(), "eth_gasPrice", nil)
	require.NoError(t, err)
	assert.Equal(t, "0x4a817c800", result)
}

func TestMonotonicRequestIDs(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		res := protocol.NewResponse(req.RequestID, nil)
		return &res
	}

	p := New(pagePort, Options{})
	for i := 0; i < 3; i++ {
		_, err := p.Request(context.Background(), "eth_blockNumber", nil)
		require.NoError(t, err)
	}

	bg.mu.Lock()
	defer bg.mu.Unlock()
	require.Len(t, bg.requests, 3)
	assert.Equal(t, "1", bg.requests[0].RequestID)
	assert.Equal(t, "2", bg.requests[1].RequestID)
	assert.Equal(t, "3", bg.requests[2].RequestID)
}

// 秒回的后台 + 并发请求: 送达协程读 call.timer 与 Request 的写必须无竞争,
// 链 ID 的并发刷新与读取同理。-race 下运行有意义。
func TestConcurrentRequestsWithFastResponder(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		if req.Method == MethodCheckConnection {
			res := protocol.NewResponse(req.RequestID, "0x38")
			return &res
		}
		res := protocol.NewResponse(req.RequestID, "0x0")
		return &res
	}

	p := New(pagePort, Options{ChainID: "0x1"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.Request(context.Background(), "eth_blockNumber", nil)
			assert.NoError(t, err)
			assert.Equal(t, "0x0", result)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.CheckConnection(context.Background())
			_ = p.ChainID()
			_, _ = p.Request(context.Background(), "net_version", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, "0x38", p.ChainID())
	assert.True(t, p.IsConnected())
}

func TestErrorTakesPrecedence(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		// result 与 error 同时出现时 error 必须生效
		res := protocol.ResponseEnvelope{Type: protocol.TypeResponse, RequestID: req.RequestID, Result: "0x1", Error: "Unauthorized"}
		return &res
	}

	p := New(pagePort, Options{})
	result, err := p.Request(context.Background(), "eth_accounts", nil)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.Equal(t, "Unauthorized", err.Error())
}

func TestTimeoutRejectsAndCancels(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort) // 从不回包

	p := New(pagePort, Options{Timeout: 50 * time.Millisecond})
	_, err := p.Request(context.Background(), "eth_sendTransaction", []interface{}{map[string]interface{}{"to": "0x00"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrTimeout)

	// 超时后必须向后台发送取消信号
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && bg.cancelCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, bg.cancelCount())
}

func TestLateResponseDropped(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	var reqID string
	var mu sync.Mutex
	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		mu.Lock()
		reqID = req.RequestID
		mu.Unlock()
		return nil
	}

	p := New(pagePort, Options{Timeout: 30 * time.Millisecond})
	_, err := p.Request(context.Background(), "personal_sign", []interface{}{"hello", "0xabc"})
	assert.ErrorIs(t, err, errno.ErrTimeout)

	// 超时后的迟到响应不得产生任何可观察效果
	mu.Lock()
	id := reqID
	mu.Unlock()
	res := protocol.NewResponse(id, "0xsig")
	require.NoError(t, extPort.Post(transport.Message{Source: transport.SourceExtension, Env: res}))
	time.Sleep(50 * time.Millisecond)
}

func TestContextCancellation(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort) // 从不回包

	ctx, cancel := context.WithCancel(context.Background())
	p := New(pagePort, Options{})

	errCh := make(chan error, 1)
	go func() {
		_, err := p.Request(ctx, "eth_getBalance", []interface{}{"0xabc", "latest"})
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("取消后请求未返回")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && bg.cancelCount() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, bg.cancelCount(), "ctx 取消也应向后台发送取消信号")
}

func TestRequestAccountsEmitsEvent(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		res := protocol.NewResponse(req.RequestID, []interface{}{"0xAbC0000000000000000000000000000000000001"})
		return &res
	}

	p := New(pagePort, Options{})

	var mu sync.Mutex
	var events int
	p.Events.On(EventAccountsChanged, func(args ...interface{}) {
		mu.Lock()
		events++
		mu.Unlock()
	})

	_, err := p.Request(context.Background(), "eth_requestAccounts", nil)
	require.NoError(t, err)
	assert.True(t, p.IsConnected())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, events)
}

func TestCheckConnectionSwallowsErrors(t *testing.T) {
	pagePort, extPort := transport.NewPipe()
	defer pagePort.Close()
	defer extPort.Close()

	bg := newFakeBackground(extPort)
	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		res := protocol.NewErrorResponse(req.RequestID, "backend offline")
		return &res
	}

	p := New(pagePort, Options{})
	p.CheckConnection(context.Background())
	assert.False(t, p.IsConnected(), "探测失败应保持断开状态且不抛错")

	bg.respond = func(req protocol.RequestEnvelope) *protocol.ResponseEnvelope {
		res := protocol.NewResponse(req.RequestID, "0xaa36a7")
		return &res
	}
	p.CheckConnection(context.Background())
	assert.True(t, p.IsConnected())
	assert.Equal(t, "0xaa36a7", p.ChainID(), "探测成功应刷新缓存的链 ID")
}

func TestEmitterRemoveListener(t *testing.T) {
	e := NewEmitter()
	var calls int
	id := e.On("connect", func(args ...interface{}) { calls++ })
	e.Emit("connect")
	e.RemoveListener("connect", id)
	e.Emit("connect")
	assert.Equal(t, 1, calls)
}
