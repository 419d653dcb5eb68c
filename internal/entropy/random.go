// Package entropy derives simulation seeds from crypto/rand when none is
// configured.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"
)

// Seed returns configured when non-zero, otherwise a fresh positive seed.
func Seed(configured int64) int64 {
	if configured != 0 {
		return configured
	}
	seed := cryptoSeed()
	slog.Info("no seed configured, derived one", "seed", seed)
	return seed
}

func cryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; the clock still gives a usable seed.
		return time.Now().UnixNano()&(1<<62-1) | 1
	}
	n := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if n == 0 {
		n = 1
	}
	return n
}
