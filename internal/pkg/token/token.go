package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// NewPasscode generates a cryptographically random numeric passcode of n digits,
// zero-padded so every passcode has exactly n characters.
func NewPasscode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("passcode length must be positive, got %d", n)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate passcode: %w", err)
	}
	return fmt.Sprintf("%0*d", n, v), nil
}
