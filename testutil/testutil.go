package testutil

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63n returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Int63n(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63n(n)
}

// Duration returns a pseudo-random duration in [0,max).
func (r *RNG) Duration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(r.Int63n(int64(max)))
}

// Shuffle returns a shuffled copy of s.
func (r *RNG) Shuffle(s []string) []string {
	out := append([]string(nil), s...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Subset returns k distinct elements of s in random order.
// k is clamped to len(s).
func (r *RNG) Subset(s []string, k int) []string {
	if k > len(s) {
		k = len(s)
	}
	return r.Shuffle(s)[:k]
}

// alphabet mixes ASCII, multi-byte letters and separators so generated text
// exercises code-point offsets.
var alphabet = []rune("abcdefghij äöüßé日本語 .,-")

// Text returns n pseudo-random code points.
func (r *RNG) Text(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteRune(alphabet[r.rand.Intn(len(alphabet))])
	}
	return b.String()
}
