package engine

import (
	"crypto/rand"
	"encoding/binary"
	"os"
	"time"
)

// SeedStream yields well-mixed per-match seeds from one base (splitmix64), so a
// run of matches is reproducible from its base seed.
type SeedStream struct{ state uint64 }

func NewSeedStream(base uint64) *SeedStream { return &SeedStream{state: base} }

func (s *SeedStream) Next() int64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z ^= z >> 30
	z *= 0xBF58476D1CE4E5B9
	z ^= z >> 27
	z *= 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z)
}

// SecureBaseSeed draws a base from crypto/rand, falling back to the clock.
func SecureBaseSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return binary.LittleEndian.Uint64(b[:]) ^ uint64(time.Now().UnixNano()) ^ uint64(os.Getpid())
	}
	return uint64(time.Now().UnixNano()) ^ 0xA5A5A5A5A5A5A5A5
}
