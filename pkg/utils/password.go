package utils

import (
	"crypto/rand"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes bcrypt 只接受 72 字节以内的输入（按字节，不按字符）
const MaxPasswordBytes = 72

func HashPassword(pw string) (string, error) {
	if len(pw) > MaxPasswordBytes {
		return "", bcrypt.ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(pw, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
}

// UnusablePassword 占位哈希：'!' 前缀 + 随机串，永远无法通过 CheckPassword
func UnusablePassword() string {
	b := make([]byte, 20)
	_, _ = rand.Read(b)
	return "!" + hex.EncodeToString(b)
}
