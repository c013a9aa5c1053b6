package signing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunbyte-wallet/pkg/errno"
)

func TestSignAndBroadcast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/wallet/sign-and-broadcast", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "0xabc", body["fromAddress"])
		assert.Equal(t, "secret123", body["password"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"txHash": "0xdeadbeef", "blockNumber": 12345})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.SignAndBroadcast(context.Background(), "0xabc", "secret123", &UnsignedTx{To: "0xdef", Value: "0xde0b6b3a7640000"})
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", res.TxHash)
	assert.Equal(t, uint64(12345), res.BlockNumber)
}

func TestWrongPasswordMapsTo401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid password"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.SignMessage(context.Background(), "0xabc", "wrong", "hello")
	assert.ErrorIs(t, err, errno.ErrPasswordIncorrect)
}

func TestUnknownAddressMapsTo404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Wallet not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Balance(context.Background(), "0x0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, errno.ErrWalletNotFound)
}

func TestDuplicateImportMapsTo409(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Wallet for this address already exists"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ImportMnemonic(context.Background(), "legal winner thank year wave sausage worth useful legal winner thank yellow", "secret123")
	assert.ErrorIs(t, err, errno.ErrWalletExists)
}

func TestUpstreamErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "amount must be a positive decimal"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.PrepareTransaction(context.Background(), "0xabc", "0xdef", "-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrUpstreamFailure)
	assert.Equal(t, "amount must be a positive decimal", err.Error())
}

func TestUnreachableService(t *testing.T) {
	c := NewClient("http://127.0.0.1:1") // 无监听端口
	_, err := c.CreateWallet(context.Background(), "secret123")
	assert.ErrorIs(t, err, errno.ErrUpstreamFailure)
}

func TestBalancePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]string{"balance": "1.5"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	balance, err := c.Balance(context.Background(), "0xAbC0000000000000000000000000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "1.5", balance)
	assert.Equal(t, "/wallet/0xAbC0000000000000000000000000000000000001/balance", gotPath)
}
