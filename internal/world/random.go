package world

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// DefaultSeed is the root seed used when a region does not configure one.
const DefaultSeed = "tilesuite"

// RandomSource yields uniform integers in [1, n].
type RandomSource interface {
	Roll(n int) int
}

// RandomFunc adapts a function to RandomSource.
type RandomFunc func(n int) int

// Roll implements RandomSource.
func (f RandomFunc) Roll(n int) int {
	if f == nil || n < 1 {
		return 1
	}
	return f(n)
}

// DeterministicSeedValue derives a stable seed from a root seed and a label so
// independent consumers get independent streams.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a rand.Rand seeded from rootSeed and label.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// Dice is a RandomSource backed by math/rand. It may be shared between
// goroutines.
type Dice struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewDice wraps rng. A nil rng falls back to the default deterministic stream.
func NewDice(rng *rand.Rand) *Dice {
	if rng == nil {
		rng = NewDeterministicRNG(DefaultSeed, "dice")
	}
	return &Dice{rng: rng}
}

// NewSeededDice builds dice from a root seed and label.
func NewSeededDice(rootSeed, label string) *Dice {
	return NewDice(NewDeterministicRNG(rootSeed, label))
}

// Roll returns a uniform integer in [1, n]. Non-positive n yields 1.
func (d *Dice) Roll(n int) int {
	if n < 1 {
		return 1
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rng.Intn(n) + 1
}
