package shortener

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Alphabet holds the symbols a short code is drawn from. Codes are case
// sensitive.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator produces a random code of the requested length.
type Generator func(length int) (string, error)

var alphabetLength = big.NewInt(int64(len(Alphabet)))

// GenerateCode draws length symbols uniformly from Alphabet using
// crypto/rand. It does not check for collisions; that is the allocator's job.
func GenerateCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid code length %d", length)
	}
	bytes := make([]byte, length)
	for i := range bytes {
		num, err := rand.Int(rand.Reader, alphabetLength)
		if err != nil {
			return "", err
		}
		bytes[i] = Alphabet[num.Int64()]
	}
	return string(bytes), nil
}

// ValidCode reports whether code could have been issued: non-empty, no
// longer than maxLength and made only of Alphabet symbols.
func ValidCode(code string, maxLength int) bool {
	if code == "" || len(code) > maxLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
