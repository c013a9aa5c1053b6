package relay

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunbyte-wallet/internal/web3/protocol"
	"sunbyte-wallet/internal/web3/transport"
)

type recorder struct {
	mu   sync.Mutex
	msgs []transport.Message
}

func (r *recorder) record(msg transport.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func waitCount(t *testing.T, r *recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("超时: 期望 %d 条消息，实际 %d 条", n, r.count())
}

func newRelayUnderTest(t *testing.T) (pageSide, bgSide transport.Port, rec *recorder) {
	t.Helper()
	pageA, pageB := transport.NewPipe()
	bgA, bgB := transport.NewPipe()
	t.Cleanup(func() {
		pageA.Close()
		pageB.Close()
		bgA.Close()
		bgB.Close()
	})

	r := New(pageB, bgA)
	require.True(t, r.Attach())
	assert.False(t, r.Attach(), "重复 Attach 必须是空操作")

	rec = &recorder{}
	bgB.OnMessage(rec.record)
	return pageA, bgB, rec
}

func TestForwardsRequestsUnchanged(t *testing.T) {
	pageSide, _, rec := newRelayUnderTest(t)

	req := protocol.NewRequest("42", "personal_sign", []interface{}{"hello", "0xabc"})
	require.NoError(t, pageSide.Post(transport.Message{Source: transport.SourcePage, Env: req}))

	waitCount(t, rec, 1)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	got := rec.msgs[0].Env.(protocol.RequestEnvelope)
	assert.Equal(t, req, got, "转发必须逐字段原样")
}

func TestForwardsCancels(t *testing.T) {
	pageSide, _, rec := newRelayUnderTest(t)

	require.NoError(t, pageSide.Post(transport.Message{Source: transport.SourcePage, Env: protocol.NewCancel("7")}))

	waitCount(t, rec, 1)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "7", rec.msgs[0].Env.(protocol.CancelEnvelope).RequestID)
}

func TestDropsForeignSourceMessages(t *testing.T) {
	pageSide, _, rec := newRelayUnderTest(t)

	// 非页面来源的消息必须被丢弃
	req := protocol.NewRequest("1", "eth_accounts", nil)
	require.NoError(t, pageSide.Post(transport.Message{Source: transport.SourceExternal, Env: req}))
	require.NoError(t, pageSide.Post(transport.Message{Source: transport.SourceExtension, Env: req}))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestRelaysResponsesBack(t *testing.T) {
	pageSide, bgSide, _ := newRelayUnderTest(t)

	pageRec := &recorder{}
	pageSide.OnMessage(pageRec.record)

	res := protocol.NewResponse("42", "0xresult")
	require.NoError(t, bgSide.Post(transport.Message{Source: transport.SourceExtension, Env: res}))

	waitCount(t, pageRec, 1)
	pageRec.mu.Lock()
	defer pageRec.mu.Unlock()
	got := pageRec.msgs[0].Env.(protocol.ResponseEnvelope)
	assert.Equal(t, "42", got.RequestID)
	assert.Equal(t, "0xresult", got.Result)
}
