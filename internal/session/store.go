// Package session 维护钱包会话状态 (钱包地址 + 登录标志)。
// 路由器在放行任何暴露账户或签名的方法前都要咨询这里。
package session

import (
	"context"
	"errors"
	"sync"
)

// Session 会话快照
// 不变式: IsLoggedIn=true 时 WalletAddress 必须非空 (钱包可以存在但被锁定)
type Session struct {
	WalletAddress string `json:"walletAddress"`
	IsLoggedIn    bool   `json:"isLoggedIn"`
}

var ErrLoginWithoutWallet = errors.New("session: cannot login without a wallet address")

// Store 键值会话存储
type Store interface {
	Get(ctx context.Context) (Session, error)
	SetWalletAddress(ctx context.Context, address string) error
	// SetLoggedIn 在没有钱包地址时拒绝置为已登录
	SetLoggedIn(ctx context.Context, loggedIn bool) error
	Clear(ctx context.Context) error
}

// MemoryStore 进程内实现，扩展宿主与测试使用
type MemoryStore struct {
	mu      sync.RWMutex
	session Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(ctx context.Context) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, nil
}

func (s *MemoryStore) SetWalletAddress(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.WalletAddress = address
	if address == "" {
		s.session.IsLoggedIn = false
	}
	return nil
}

func (s *MemoryStore) SetLoggedIn(ctx context.Context, loggedIn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loggedIn && s.session.WalletAddress == "" {
		return ErrLoginWithoutWallet
	}
	s.session.IsLoggedIn = loggedIn
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = Session{}
	return nil
}
