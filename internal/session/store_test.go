package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginRequiresWallet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.SetLoggedIn(ctx, true)
	assert.ErrorIs(t, err, ErrLoginWithoutWallet, "无钱包地址时不允许登录")

	require.NoError(t, store.SetWalletAddress(ctx, "0xAbC0000000000000000000000000000000000001"))
	require.NoError(t, store.SetLoggedIn(ctx, true))

	s, err := store.Get(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsLoggedIn)
	assert.Equal(t, "0xAbC0000000000000000000000000000000000001", s.WalletAddress)
}

func TestClearingAddressLogsOut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetWalletAddress(ctx, "0xabc"))
	require.NoError(t, store.SetLoggedIn(ctx, true))

	require.NoError(t, store.SetWalletAddress(ctx, ""))
	s, err := store.Get(ctx)
	require.NoError(t, err)
	assert.False(t, s.IsLoggedIn, "地址被清空时登录态必须同步失效")
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetWalletAddress(ctx, "0xabc"))
	require.NoError(t, store.SetLoggedIn(ctx, true))
	require.NoError(t, store.Clear(ctx))

	s, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Session{}, s)
}

func TestLogoutAlwaysAllowed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	assert.NoError(t, store.SetLoggedIn(ctx, false))
}
