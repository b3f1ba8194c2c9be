package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// RandomSource supplies combat rolls. Tests inject fixed sources.
type RandomSource interface {
	// Percent returns a value in [0, 100).
	Percent() float64
}

// RNG wraps math/rand.Rand with deterministic position tracking.
// Position increments with every call so a logged seed and position
// reproduce any roll.
type RNG struct {
	seed int64
	src  *rand.Rand
	pos  int64
}

// NewRNG creates a new deterministic RNG from a seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		seed: seed,
		src:  rand.New(rand.NewSource(seed)),
	}
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Percent returns a uniformly distributed value in [0, 100).
func (r *RNG) Percent() float64 {
	r.pos++
	return r.src.Float64() * 100
}

// Seed returns the seed the RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Position returns the number of RNG calls made since creation.
func (r *RNG) Position() int64 {
	return r.pos
}
