package bip39

import (
	bip39 "github.com/tyler-smith/go-bip39"
)

// MnemonicService 封装 BIP-39 助记词的生成与种子推导
type MnemonicService struct{}

func NewMnemonicService() *MnemonicService {
	return &MnemonicService{}
}

// GenerateMnemonic 生成助记词
// bitSize: 熵位数, 128 = 12 个单词, 256 = 24 个单词
func (s *MnemonicService) GenerateMnemonic(bitSize int) (string, error) {
	entropy, err := bip39.NewEntropy(bitSize)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic 校验助记词是否合法 (单词表 + 校验和)
func (s *MnemonicService) ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// MnemonicToSeed 从助记词推导 512-bit 种子
// passphrase 是可选的 BIP-39 额外口令 (通常为空)
func (s *MnemonicService) MnemonicToSeed(mnemonic, passphrase string) []byte {
	return bip39.NewSeed(mnemonic, passphrase)
}
