package sim

import (
	"math/rand"
	"sync"
)

// Rand is a mutex-guarded source of randomness shared by the simulation
// loops. Tests inject a seeded instance to make behavior reproducible.
type Rand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a seeded random source.
func NewRand(seed int64) *Rand {
	return &Rand{r: rand.New(rand.NewSource(seed))}
}

func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Float64()
}

func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Intn(n)
}

func (r *Rand) Perm(n int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Perm(n)
}

// Chance reports whether a random draw lands under p.
func (r *Rand) Chance(p float64) bool {
	return r.Float64() < p
}
