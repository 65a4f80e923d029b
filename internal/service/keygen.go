package service

import (
	"math/rand/v2"
	"strings"
)

const (
	keyAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyLength    = 16
	keyGroupSize = 4
)

// GenerateLicenseKey 生成 XXXX-XXXX-XXXX-XXXX 形式的密钥。
// 非加密随机，唯一性由 license_key 唯一索引保证
func GenerateLicenseKey() string {
	var b strings.Builder
	b.Grow(keyLength + keyLength/keyGroupSize - 1)
	for i := 0; i < keyLength; i++ {
		if i > 0 && i%keyGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyAlphabet[rand.IntN(len(keyAlphabet))])
	}
	return b.String()
}
