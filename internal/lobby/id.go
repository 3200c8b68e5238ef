package lobby

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Alphabet omits characters that are easy to confuse when read aloud or typed: 0, O, o, I, l.
const Alphabet = "123456789abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ"

var errBadLength = errors.New("room id length must be positive")

// RandomID draws n characters uniformly from Alphabet.
func RandomID(n int) (string, error) {
	if n <= 0 {
		return "", errBadLength
	}
	max := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, n)
	for i := range b {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[k.Int64()]
	}
	return string(b), nil
}
