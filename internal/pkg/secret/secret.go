package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
)

const (
	tokenBytes = 32
	codeMin    = 100000
	codeMax    = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// NewToken generates a cryptographically random 64-character hex token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// NewCode returns a uniformly distributed 6-digit code in [100000, 999999].
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// Hash returns the hex SHA-256 digest of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
