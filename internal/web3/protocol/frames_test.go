package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	raw := []byte(`{"type":"SUNBYTE_REQUEST","method":"eth_requestAccounts","params":[],"requestId":"1"}`)

	env, err := Decode(raw)
	require.NoError(t, err)

	req, ok := env.(RequestEnvelope)
	require.True(t, ok, "应解析为 RequestEnvelope")
	assert.Equal(t, "eth_requestAccounts", req.Method)
	assert.Equal(t, "1", req.RequestID)
	assert.Empty(t, req.Params)
}

func TestDecodeResponseErrorPrecedence(t *testing.T) {
	// result 和 error 同时出现时由上层处理，信封层保留两者
	raw := []byte(`{"type":"SUNBYTE_RESPONSE","requestId":"7","result":"0x1","error":"boom"}`)

	env, err := Decode(raw)
	require.NoError(t, err)

	res := env.(ResponseEnvelope)
	assert.Equal(t, "0x1", res.Result)
	assert.Equal(t, "boom", res.Error)
}

func TestDecodeConfirmFrames(t *testing.T) {
	raw := []byte(`{"type":"WEB3_REQUEST","requestType":"transaction","requestId":"abc","data":{"to":"0x00"}}`)
	env, err := Decode(raw)
	require.NoError(t, err)
	cr := env.(ConfirmRequestEnvelope)
	assert.Equal(t, RequestTypeTransaction, cr.RequestType)

	raw = []byte(`{"type":"WEB3_RESPONSE","requestId":"abc","success":false,"error":"User rejected the request"}`)
	env, err = Decode(raw)
	require.NoError(t, err)
	res := env.(ConfirmResponseEnvelope)
	assert.False(t, res.Success)
	assert.Equal(t, "User rejected the request", res.Error)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"SOMETHING_ELSE"}`))
	assert.Error(t, err, "未知类型应报错而不是静默忽略")

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	orig := NewConfirmResponse("id-1", true, "0xdeadbeef", "")

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	env, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, orig, env.(ConfirmResponseEnvelope))
}

func TestNewRequestDefaultsParams(t *testing.T) {
	req := NewRequest("1", "eth_chainId", nil)
	assert.NotNil(t, req.Params, "params 应序列化为 [] 而非 null")
}
