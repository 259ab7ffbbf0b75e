package forecast

import (
	crand "crypto/rand"
	"encoding/binary"
	"math"
	"math/rand/v2"
)

// NoiseSource yields standard-normal samples for the stochastic overlay.
type NoiseSource interface {
	Normal() float64
}

// UniformSource yields uniform samples in [0, 1). *rand.Rand satisfies it.
type UniformSource interface {
	Float64() float64
}

// BoxMuller turns pairs of uniform draws into standard-normal samples. It is
// not safe for concurrent use; create one per forecast.
type BoxMuller struct {
	src UniformSource
}

// NewBoxMuller returns a BoxMuller over a PCG generator seeded from entropy.
func NewBoxMuller() *BoxMuller {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return NewSeededBoxMuller(rand.Uint64())
	}
	return &BoxMuller{
		src: rand.New(rand.NewPCG(binary.LittleEndian.Uint64(seed[:8]), binary.LittleEndian.Uint64(seed[8:]))),
	}
}

// NewSeededBoxMuller returns a BoxMuller whose sequence depends only on seed.
func NewSeededBoxMuller(seed uint64) *BoxMuller {
	return &BoxMuller{src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewBoxMullerFrom wraps an existing uniform source.
func NewBoxMullerFrom(src UniformSource) *BoxMuller {
	return &BoxMuller{src: src}
}

// Normal draws u1 from (0, 1] so the logarithm stays finite.
func (b *BoxMuller) Normal() float64 {
	u1 := 1 - b.src.Float64()
	u2 := b.src.Float64()
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}

// ZeroNoise disables the stochastic overlay.
type ZeroNoise struct{}

// Normal always returns 0.
func (ZeroNoise) Normal() float64 { return 0 }
