// Package credential generates and hashes account passwords.
package credential

import (
	"crypto/rand"
	"math/big"
)

const (
	// PasswordLength is the length of generated passwords.
	PasswordLength  = 10
	passwordCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var charsetSize = big.NewInt(int64(len(passwordCharset)))

// GeneratePassword returns a PasswordLength password drawn uniformly from
// lowercase ASCII letters and digits. Every symbol comes from crypto/rand.
func GeneratePassword() (string, error) {
	buf := make([]byte, PasswordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", err
		}
		buf[i] = passwordCharset[n.Int64()]
	}
	return string(buf), nil
}
