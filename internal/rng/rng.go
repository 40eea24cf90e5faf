// Package rng provides an explicit, splittable randomness handle. A Key is a
// plain value: consuming entropy means deriving new keys, never mutating a
// shared generator, so draws are reproducible under parallel execution.
package rng

import (
	"fmt"
	"math/rand/v2"
)

type Key struct {
	Hi, Lo uint64
}

func New(seed uint64) Key {
	return Key{Hi: mix(seed), Lo: mix(seed ^ 0x9e3779b97f4a7c15)}
}

// Split derives the key to carry forward and an independent subkey to
// consume now. Both differ from k.
func (k Key) Split() (next, sub Key) {
	src := rand.NewPCG(k.Hi, k.Lo)
	next = Key{Hi: src.Uint64(), Lo: src.Uint64()}
	sub = Key{Hi: src.Uint64(), Lo: src.Uint64()}
	return next, sub
}

// Fold derives the i-th stream of k, one per sample index.
func (k Key) Fold(i uint64) Key {
	return Key{Hi: mix(k.Hi ^ mix(i)), Lo: mix(k.Lo + i)}
}

// Source returns a generator seeded by k.
func (k Key) Source() rand.Source {
	return rand.NewPCG(k.Hi, k.Lo)
}

func (k Key) String() string {
	return fmt.Sprintf("%016x%016x", k.Hi, k.Lo)
}

// splitmix64 finalizer.
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
