package booking

import (
	"crypto/rand"
	"math/big"
)

const (
	referenceLen      = 7
	referenceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewReference returns a random 7 character upper-case alphanumeric
// reference. It is only a fallback for when the API does not return its
// own reference, and may not match the API's allocation scheme.
func NewReference() string {
	b := make([]byte, referenceLen)
	max := big.NewInt(int64(len(referenceAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = referenceAlphabet[n.Int64()]
	}
	return string(b)
}
