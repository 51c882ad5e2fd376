package group

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 6
)

// NewID returns prefix followed by six random uppercase base-36 characters.
func NewID(prefix string) (string, error) {
	base := big.NewInt(int64(len(idAlphabet)))
	code := make([]byte, idLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", fmt.Errorf("failed to generate group ID: %w", err)
		}
		code[i] = idAlphabet[n.Int64()]
	}
	return prefix + string(code), nil
}
