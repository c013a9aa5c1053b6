package bip39

import (
	"strings"
	"testing"
)

func TestGenerateMnemonic(t *testing.T) {
	service := NewMnemonicService()

	// 测试 12 个单词 (128 bits)
	mnemonic12, err := service.GenerateMnemonic(128)
	if err != nil {
		t.Fatalf("生成 12 词助记词失败: %v", err)
	}
	if len(strings.Fields(mnemonic12)) != 12 {
		t.Errorf("期望 12 个单词, got %d", len(strings.Fields(mnemonic12)))
	}
	if !service.ValidateMnemonic(mnemonic12) {
		t.Errorf("生成的 12 词助记词无效")
	}

	// 测试 24 个单词 (256 bits)
	mnemonic24, err := service.GenerateMnemonic(256)
	if err != nil {
		t.Fatalf("生成 24 词助记词失败: %v", err)
	}
	if len(strings.Fields(mnemonic24)) != 24 {
		t.Errorf("期望 24 个单词, got %d", len(strings.Fields(mnemonic24)))
	}
}

func TestValidateMnemonic(t *testing.T) {
	service := NewMnemonicService()

	if service.ValidateMnemonic("not a real mnemonic phrase at all") {
		t.Errorf("非法助记词不应通过校验")
	}
}

func TestMnemonicToSeed(t *testing.T) {
	service := NewMnemonicService()

	// BIP-39 官方测试向量 (TREZOR)
	mnemonic := "legal winner thank year wave sausage worth useful legal winner thank yellow"
	seed := service.MnemonicToSeed(mnemonic, "TREZOR")
	if len(seed) != 64 {
		t.Fatalf("种子长度错误: %d", len(seed))
	}

	// 同一助记词应推导出相同种子
	seed2 := service.MnemonicToSeed(mnemonic, "TREZOR")
	for i := range seed {
		if seed[i] != seed2[i] {
			t.Fatalf("种子推导不确定")
		}
	}
}
