// Package identity derives stable pseudo-identifiers from string keys.
//
// Every call builds its own generator seeded from the key, so deriving an
// identifier never advances any other random source in the process.
package identity

import (
	"math/rand"

	"github.com/cespare/xxhash/v2"
)

const (
	// HexAlphabet is used for user, channel and room identifiers.
	HexAlphabet = "0123456789ABCDEF"
	// AlnumAlphabet is used for workspace team identifiers.
	AlnumAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

	defaultLength = 8
)

// Seed returns the generator seed for key.
func Seed(key string) int64 {
	return int64(xxhash.Sum64String(key))
}

// Derive returns prefix followed by 8 hex characters derived from key.
func Derive(key, prefix string) string {
	return DeriveN(key, prefix, defaultLength, HexAlphabet)
}

// DeriveN returns prefix followed by n characters from alphabet derived
// from key.
func DeriveN(key, prefix string, n int, alphabet string) string {
	rng := rand.New(rand.NewSource(Seed(key)))
	buf := make([]byte, len(prefix)+n)
	copy(buf, prefix)
	for i := len(prefix); i < len(buf); i++ {
		buf[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(buf)
}
