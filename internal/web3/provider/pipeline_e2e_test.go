package provider_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunbyte-wallet/internal/session"
	"sunbyte-wallet/internal/signing"
	"sunbyte-wallet/internal/web3/confirm"
	"sunbyte-wallet/internal/web3/provider"
	"sunbyte-wallet/internal/web3/relay"
	"sunbyte-wallet/internal/web3/router"
	"sunbyte-wallet/internal/web3/transport"
)

const e2eWallet = "0xAbC0000000000000000000000000000000000001"

// 整条管道的连通测试:
// Provider -> 中转器 -> 路由器 -> 确认控制器 -> 签名服务 (httptest) -> 原路返回
func newPipeline(t *testing.T) (*provider.Provider, *confirm.Controller) {
	t.Helper()

	// 外部签名服务
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)

		if password, ok := body["password"].(string); ok && password != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid password"})
			return
		}

		switch r.URL.Path {
		case "/wallet/sign-message":
			_ = json.NewEncoder(w).Encode(map[string]string{"signature": "0xe2esignature"})
		case "/wallet/prepare-transaction":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"unsignedTx": map[string]string{"from": e2eWallet, "to": "0xDead000000000000000000000000000000000002", "value": "1"},
			})
		case "/wallet/sign-and-broadcast":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"txHash": "0xe2ehash", "blockNumber": 42})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"balance": "100"})
		}
	}))
	t.Cleanup(srv.Close)

	signer := signing.NewClient(srv.URL)

	store := session.NewMemoryStore()
	require.NoError(t, store.SetWalletAddress(context.Background(), e2eWallet))
	require.NoError(t, store.SetLoggedIn(context.Background(), true))

	rt := router.New(router.NewRequestTable(), store, signer, nil, router.Options{ChainID: "0x1", AllowChainStubs: true})
	controller := confirm.NewController(signer, rt)
	rt.SetConfirmer(controller)

	pagePort, relayPageSide := transport.NewPipe()
	relayBgSide, bgPort := transport.NewPipe()
	t.Cleanup(func() {
		pagePort.Close()
		relayPageSide.Close()
		relayBgSide.Close()
		bgPort.Close()
	})

	require.True(t, relay.New(relayPageSide, relayBgSide).Attach())
	rt.Bind(bgPort)

	return provider.New(pagePort, provider.Options{ChainID: "0x1"}), controller
}

func waitActive(t *testing.T, controller *confirm.Controller) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if controller.Active() != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("超时: 确认对话框未打开")
}

func TestEndToEndPersonalSign(t *testing.T) {
	web3, controller := newPipeline(t)

	type res struct {
		result interface{}
		err    error
	}
	done := make(chan res, 1)
	go func() {
		result, err := web3.Request(context.Background(), "personal_sign", []interface{}{"hello", "0xabc0000000000000000000000000000000000001"})
		done <- res{result, err}
	}()

	waitActive(t, controller)
	view := controller.Active()
	assert.Equal(t, "message", view.RequestType)

	_, err := controller.Approve(context.Background(), "secret123")
	require.NoError(t, err)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		assert.Equal(t, "0xe2esignature", out.result)
	case <-time.After(2 * time.Second):
		t.Fatal("超时: 页面侧未收到签名结果")
	}
}

func TestEndToEndSendTransaction(t *testing.T) {
	web3, controller := newPipeline(t)

	type res struct {
		result interface{}
		err    error
	}
	done := make(chan res, 1)
	go func() {
		result, err := web3.Request(context.Background(), "eth_sendTransaction", []interface{}{
			map[string]interface{}{"from": e2eWallet, "to": "0xDead000000000000000000000000000000000002", "value": "0xde0b6b3a7640000"},
		})
		done <- res{result, err}
	}()

	waitActive(t, controller)
	_, err := controller.Approve(context.Background(), "secret123")
	require.NoError(t, err)

	select {
	case out := <-done:
		require.NoError(t, out.err)
		m := out.result.(map[string]interface{})
		assert.Equal(t, "0xe2ehash", m["txHash"])
	case <-time.After(2 * time.Second):
		t.Fatal("超时: 页面侧未收到交易结果")
	}
}

func TestEndToEndRejection(t *testing.T) {
	web3, controller := newPipeline(t)

	done := make(chan error, 1)
	go func() {
		_, err := web3.Request(context.Background(), "personal_sign", []interface{}{"hello", e2eWallet})
		done <- err
	}()

	waitActive(t, controller)
	require.NoError(t, controller.Reject())

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, "User rejected the request", err.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("超时: 页面侧未收到拒绝")
	}
}

func TestEndToEndWrongPasswordKeepsDialogOpen(t *testing.T) {
	web3, controller := newPipeline(t)

	done := make(chan error, 1)
	go func() {
		_, err := web3.Request(context.Background(), "personal_sign", []interface{}{"hello", e2eWallet})
		done <- err
	}()

	waitActive(t, controller)
	_, err := controller.Approve(context.Background(), "wrong-password")
	require.Error(t, err)

	// 页面侧立即收到失败终态，对话框保持打开等待用户手动关闭
	select {
	case pageErr := <-done:
		require.Error(t, pageErr)
		assert.Equal(t, "Invalid password", pageErr.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("超时: 页面侧未收到失败终态")
	}
	require.NotNil(t, controller.Active())
	assert.True(t, controller.Active().Sealed)
	require.NoError(t, controller.Close())
	assert.Nil(t, controller.Active())
}

func TestEndToEndLocalChainID(t *testing.T) {
	web3, _ := newPipeline(t)
	result, err := web3.Request(context.Background(), "eth_chainId", nil)
	require.NoError(t, err)
	assert.Equal(t, "0x1", result)
}
