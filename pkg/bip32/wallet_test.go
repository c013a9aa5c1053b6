package bip32

import (
	"encoding/hex"
	"testing"

	"sunbyte-wallet/pkg/bip39"

	"github.com/btcsuite/btcd/chaincfg"
)

func TestNewMasterKeyFromSeed(t *testing.T) {
	// 使用 BIP-39 生成种子
	mnemonicService := bip39.NewMnemonicService()
	mnemonic, err := mnemonicService.GenerateMnemonic(128)
	if err != nil {
		t.Fatalf("生成助记词失败: %v", err)
	}
	seed := mnemonicService.MnemonicToSeed(mnemonic, "")

	wallet, err := NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("生成主密钥失败: %v", err)
	}

	if wallet.MasterKey() == nil {
		t.Fatalf("主密钥为空")
	}
}

func TestDerivePath(t *testing.T) {
	seedHex := "fffcf9f6da3247d8a846f4b6113e6173"
	seed, _ := hex.DecodeString(seedHex)

	wallet, err := NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("生成主密钥失败: %v", err)
	}

	// 普通路径
	if _, err := wallet.DerivePath("m/0"); err != nil {
		t.Errorf("派生路径 m/0 失败: %v", err)
	}

	// Hardened 路径
	if _, err := wallet.DerivePath("m/0'"); err != nil {
		t.Errorf("派生路径 m/0' 失败: %v", err)
	}

	// BIP-44 以太坊默认路径
	child, err := wallet.DerivePath(EthereumPath)
	if err != nil {
		t.Fatalf("派生路径 %s 失败: %v", EthereumPath, err)
	}

	priv, err := child.ECPrivKey()
	if err != nil {
		t.Fatalf("获取私钥失败: %v", err)
	}
	if priv == nil {
		t.Fatalf("私钥为空")
	}

	// 验证公钥转换
	pubKey, err := child.Neuter()
	if err != nil {
		t.Fatalf("转换为扩展公钥失败: %v", err)
	}
	if pubKey.IsPrivate() {
		t.Errorf("Neuter() 应该返回公钥，但 IsPrivate() 返回 true")
	}
}

func TestDerivePathDeterministic(t *testing.T) {
	seed, _ := hex.DecodeString("000102030405060708090a0b0c0d0e0f")

	w1, _ := NewMasterKeyFromSeed(seed, nil)
	w2, _ := NewMasterKeyFromSeed(seed, nil)

	k1, err := w1.DerivePath(EthereumPath)
	if err != nil {
		t.Fatalf("派生失败: %v", err)
	}
	k2, _ := w2.DerivePath(EthereumPath)

	if k1.String() != k2.String() {
		t.Errorf("同一种子同一路径应派生出相同密钥")
	}
}
