package utils

import (
	"crypto/rand"
	"math/big"
)

// RandomCode 生成 n 位数字验证码
func RandomCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
