package router

import (
	"sort"
	"sync"
	"time"

	"sunbyte-wallet/pkg/errno"
	"sunbyte-wallet/pkg/monitor"
)

type outcome struct {
	result interface{}
	err    error
}

// PendingRequest 等待确认结果的挂起请求。
// resolve/reject 的所有权完全归创建它的表项，最多触发一次。
type PendingRequest struct {
	ID          string // 路由器铸造的确认 id
	PageID      string // 页面侧关联 id，取消信号用它定位
	Method      string
	RequestType string // transaction | message | typedData
	Data        interface{}
	CreatedAt   time.Time

	done chan outcome
}

// Wait 阻塞直到该请求被终结 (approve/reject/dismiss/cancel)
func (p *PendingRequest) Wait() (interface{}, error) {
	out := <-p.done
	return out.result, out.err
}

// RequestTable 挂起请求表。由路由器持有并注入，不做进程级单例,
// 测试里可以并存多个互不干扰的实例。
type RequestTable struct {
	mu      sync.Mutex
	entries map[string]*PendingRequest
	byPage  map[string]string // pageID -> confirm id
}

func NewRequestTable() *RequestTable {
	return &RequestTable{
		entries: make(map[string]*PendingRequest),
		byPage:  make(map[string]string),
	}
}

// Add 登记新表项。同一 id 只能对应一个活跃表项。
func (t *RequestTable) Add(pr *PendingRequest) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[pr.ID]; exists {
		return errno.ErrAlreadyResolved.WithMessage("duplicate pending request id: " + pr.ID)
	}
	pr.done = make(chan outcome, 1)
	t.entries[pr.ID] = pr
	if pr.PageID != "" {
		t.byPage[pr.PageID] = pr.ID
	}
	t.updateGauge()
	return nil
}

// Settle 终结表项: 摘除并投递结果。幂等 — 已终结或未知的 id 返回 false，
// 不产生任何可观察效果 (防止迟到/重复的确认事件二次触发)。
func (t *RequestTable) Settle(id string, result interface{}, err error) bool {
	t.mu.Lock()
	pr, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	delete(t.entries, id)
	delete(t.byPage, pr.PageID)
	t.updateGauge()
	t.mu.Unlock()

	pr.done <- outcome{result: result, err: err}
	return true
}

// ByPageID 按页面侧 id 查找活跃表项
func (t *RequestTable) ByPageID(pageID string) *PendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byPage[pageID]
	if !ok {
		return nil
	}
	return t.entries[id]
}

// Get 按确认 id 查找活跃表项
func (t *RequestTable) Get(id string) *PendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[id]
}

// List 返回按创建时间排序的活跃表项快照
func (t *RequestTable) List() []*PendingRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*PendingRequest, 0, len(t.entries))
	for _, pr := range t.entries {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (t *RequestTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// caller must hold t.mu
func (t *RequestTable) updateGauge() {
	if monitor.Business != nil {
		monitor.Business.Web3PendingRequests.Set(float64(len(t.entries)))
	}
}
