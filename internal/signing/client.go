// Package signing 是外部签名服务的 HTTP 客户端。
// 自身不持有任何状态，只按固定契约发请求、解响应、映射错误码。
package signing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"sunbyte-wallet/pkg/errno"
)

// UnsignedTx 待签名交易字段，prepare-transaction 返回、sign-and-broadcast 回传
type UnsignedTx struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
	Nonce    string `json:"nonce"`
	ChainID  string `json:"chainId"`
	Data     string `json:"data,omitempty"`
}

// BroadcastResult 上链结果
type BroadcastResult struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// CreateResult 新建钱包结果，助记词只在这一次返回
type CreateResult struct {
	Address  string `json:"address"`
	Mnemonic string `json:"mnemonic"`
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithHTTP 注入自定义 http.Client，测试用
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) CreateWallet(ctx context.Context, password string) (*CreateResult, error) {
	var out CreateResult
	err := c.post(ctx, "/wallet/create", map[string]string{"password": password}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ImportMnemonic(ctx context.Context, mnemonic, password string) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	err := c.post(ctx, "/wallet/import-mnemonic", map[string]string{"mnemonic": mnemonic, "password": password}, &out)
	return out.Address, err
}

func (c *Client) ImportPrivateKey(ctx context.Context, privateKey, password string) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	err := c.post(ctx, "/wallet/import-private-key", map[string]string{"privateKey": privateKey, "password": password}, &out)
	return out.Address, err
}

func (c *Client) Balance(ctx context.Context, address string) (string, error) {
	var out struct {
		Balance string `json:"balance"`
	}
	err := c.get(ctx, "/wallet/"+url.PathEscape(address)+"/balance", &out)
	return out.Balance, err
}

func (c *Client) PrepareTransaction(ctx context.Context, fromAddress, toAddress, amount string) (*UnsignedTx, error) {
	var out struct {
		UnsignedTx UnsignedTx `json:"unsignedTx"`
	}
	body := map[string]string{"fromAddress": fromAddress, "toAddress": toAddress, "amount": amount}
	if err := c.post(ctx, "/wallet/prepare-transaction", body, &out); err != nil {
		return nil, err
	}
	return &out.UnsignedTx, nil
}

func (c *Client) SignAndBroadcast(ctx context.Context, fromAddress, password string, tx *UnsignedTx) (*BroadcastResult, error) {
	var out BroadcastResult
	body := map[string]interface{}{"fromAddress": fromAddress, "password": password, "unsignedTx": tx}
	if err := c.post(ctx, "/wallet/sign-and-broadcast", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignMessage(ctx context.Context, fromAddress, password, message string) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	body := map[string]string{"fromAddress": fromAddress, "password": password, "message": message}
	err := c.post(ctx, "/wallet/sign-message", body, &out)
	return out.Signature, err
}

func (c *Client) SignTypedData(ctx context.Context, fromAddress, password string, typedData interface{}) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	body := map[string]interface{}{"fromAddress": fromAddress, "password": password, "typedData": typedData}
	err := c.post(ctx, "/wallet/sign-typed-data", body, &out)
	return out.Signature, err
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return errno.ErrUpstreamFailure.WithMessage(fmt.Sprintf("signing service unreachable: %v", err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return errno.ErrUpstreamFailure
	}

	if res.StatusCode >= 400 {
		return decodeError(res.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errno.ErrUpstreamFailure.WithMessage("signing service returned malformed response")
	}
	return nil
}

// decodeError 把 HTTP 状态码映射为管道错误分类。
// 契约: 401 密码错误，404 地址不存在，409 重复导入，400 参数非法。
func decodeError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	switch status {
	case http.StatusUnauthorized:
		return errno.ErrPasswordIncorrect
	case http.StatusNotFound:
		return errno.ErrWalletNotFound
	case http.StatusConflict:
		return errno.ErrWalletExists
	default:
		if payload.Error != "" {
			return errno.ErrUpstreamFailure.WithMessage(payload.Error)
		}
		return errno.ErrUpstreamFailure.WithMessage(fmt.Sprintf("signing service returned status %d", status))
	}
}
