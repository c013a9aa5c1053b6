package wallet

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sunbyte-wallet/pkg/bip39"
)

const testMnemonic = "legal winner thank year wave sausage worth useful legal winner thank yellow"

func newBareService() *Service {
	// 不挂数据库，只测纯派生逻辑
	return &Service{mnemonics: bip39.NewMnemonicService()}
}

func TestDeriveFromMnemonicDeterministic(t *testing.T) {
	s := newBareService()

	addr1, priv1, err := s.deriveFromMnemonic(testMnemonic)
	require.NoError(t, err)
	addr2, priv2, err := s.deriveFromMnemonic(testMnemonic)
	require.NoError(t, err)

	assert.Equal(t, addr1, addr2, "同一助记词必须派生出同一地址")
	assert.Equal(t, priv1, priv2)
	assert.True(t, common.IsHexAddress(addr1))
}

func TestDerivedKeyMatchesAddress(t *testing.T) {
	s := newBareService()

	addr, privHex, err := s.deriveFromMnemonic(testMnemonic)
	require.NoError(t, err)

	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	require.NoError(t, err)
	assert.Equal(t, addr, crypto.PubkeyToAddress(priv.PublicKey).Hex(), "私钥必须对应派生地址")
}

func TestDifferentMnemonicsDifferentAddresses(t *testing.T) {
	s := newBareService()

	addr1, _, err := s.deriveFromMnemonic(testMnemonic)
	require.NoError(t, err)

	other, err := s.mnemonics.GenerateMnemonic(128)
	require.NoError(t, err)
	addr2, _, err := s.deriveFromMnemonic(other)
	require.NoError(t, err)

	assert.NotEqual(t, addr1, addr2)
}

func TestDefaultHex(t *testing.T) {
	assert.Equal(t, "0x1", defaultHex("", "0x1"))
	assert.Equal(t, "0x5208", defaultHex("0x5208", "0x1"))
}
