package util

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"time"
)

// GenerateSeed returns a random seed from crypto/rand, or the current time
// if the system source fails
func GenerateSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	return binary.LittleEndian.Uint64(b[:])
}

// NewRand returns a PCG generator seeded by GenerateSeed. The generator is
// not safe for concurrent use.
func NewRand() *mrand.Rand {
	return mrand.New(mrand.NewPCG(GenerateSeed(), GenerateSeed()))
}
