// Package entropy provides the independent random source used for the
// non-deterministic generation draws. It seeds math/rand from crypto/rand.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	mrand "math/rand"
	"sync"
	"time"
)

// Seed returns a fresh non-zero 63-bit seed from crypto/rand. Falls back to
// the wall clock if the OS source fails.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Debug("crypto seed failed, using clock", "error", err)
		return time.Now().UnixNano() | 1
	}
	s := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if s == 0 {
		s = 1
	}
	return s
}

// NewRand returns a math/rand generator seeded from Seed.
func NewRand() *mrand.Rand {
	return mrand.New(mrand.NewSource(Seed()))
}

// Source is a goroutine-safe random generator. Each robot worker owns its
// own robot, but robots constructed by the engine share one Source.
type Source struct {
	mu  sync.Mutex
	rng *mrand.Rand
}

// NewSource creates a Source from seed (0 = fresh entropy).
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = Seed()
	}
	return &Source{rng: mrand.New(mrand.NewSource(seed))}
}

// Derive returns a new unshared generator seeded from this Source.
func (s *Source) Derive() *mrand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mrand.New(mrand.NewSource(s.rng.Int63()))
}
