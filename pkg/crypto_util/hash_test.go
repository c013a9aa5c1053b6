package crypto_util

import "testing"

func TestCalculateBlake3(t *testing.T) {
	a := CalculateBlake3([]byte("keystore-content"))
	b := CalculateBlake3([]byte("keystore-content"))
	if a != b {
		t.Errorf("Blake3 应当是确定性的")
	}
	if len(a) != 64 {
		t.Errorf("Blake3 输出长度错误: %d", len(a))
	}

	c := CalculateBlake3([]byte("keystore-content-tampered"))
	if a == c {
		t.Errorf("不同输入不应产生相同哈希")
	}
}
