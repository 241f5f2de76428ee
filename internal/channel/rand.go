package channel

import (
	mathrand "math/rand/v2"
	"sync"
)

// Rand supplies the two independent uniform draws made per transmission,
// plus the random byte used for checksum corruption. Substitutable with a
// seeded or scripted source for tests.
type Rand interface {
	Float64() float64
	Byte() byte
}

// globalRand draws from the math/rand/v2 global source, which is already
// safe for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return mathrand.Float64() }
func (globalRand) Byte() byte       { return byte(mathrand.Uint32()) }

// DefaultRand is the process-wide random source used when none is injected.
var DefaultRand Rand = globalRand{}

// seededRand is a mutex-guarded seeded source for reproducible runs.
type seededRand struct {
	mu  sync.Mutex
	rng *mathrand.Rand
}

// NewSeededRand returns a reproducible random source. Unlike the global
// source, a *rand.Rand is not safe for concurrent use, so draws are
// serialized with a mutex.
func NewSeededRand(seed uint64) Rand {
	return &seededRand{rng: mathrand.New(mathrand.NewPCG(seed, seed))}
}

func (r *seededRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *seededRand) Byte() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return byte(r.rng.Uint32())
}
