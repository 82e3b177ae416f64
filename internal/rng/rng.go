// Package rng turns a shared match seed into a deterministic random source.
package rng

import (
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// Source is the subset of *rand.Rand the world generators consume.
type Source interface {
	Float64() float64
}

// New returns a PCG-backed generator derived from seed. Equal seeds always
// yield equal sequences, on every platform and Go release that keeps PCG.
func New(seed string) *rand.Rand {
	hi := xxhash.Sum64String(seed)
	lo := xxhash.Sum64String("lander:" + seed)
	return rand.New(rand.NewPCG(hi, lo))
}
