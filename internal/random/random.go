// Package random provides cryptographically secure selection helpers.
//
// It uses crypto/rand so selector draws cannot be predicted from prior
// rounds, and IntN is unbiased over its range via rejection sampling.
package random

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// IntN returns a uniformly distributed integer in [0, n).
func IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("upper bound must be positive, got %d", n)
	}

	bound := uint64(n)
	// Rejection sampling: discard draws from the biased tail of the
	// 64-bit space so every residue is equally likely.
	limit := math.MaxUint64 / bound * bound
	for {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("read random bytes: %w", err)
		}
		v := binary.LittleEndian.Uint64(b[:])
		if v < limit {
			return int(v % bound), nil
		}
	}
}

// Shuffle permutes the slice in place using Fisher-Yates driven by IntN.
func Shuffle[T any](items []T) error {
	for i := len(items) - 1; i > 0; i-- {
		j, err := IntN(i + 1)
		if err != nil {
			return err
		}
		items[i], items[j] = items[j], items[i]
	}
	return nil
}
