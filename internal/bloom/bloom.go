// Package bloom implements the crawler's in-process, probabilistic
// membership filter: a fast negative check performed before a URL is
// looked up against the (much more expensive) external frontier store.
//
// It is never authoritative for dedupe -- the frontier's seen/processing/
// completed sets are -- this is purely a pre-filter to avoid a round trip
// for URLs that have definitely not been seen.
package bloom

import (
	"crypto/md5"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
)

// Filter is a concurrency-safe Bloom filter sized from a target capacity
// and false-positive rate per spec: m = ceil(-n*ln(p)/ln(2)^2),
// k = ceil((m/n)*ln(2)).
type Filter struct {
	mu    sync.RWMutex
	bits  *bitset.BitSet
	m     uint
	k     uint
	count int64 // approximate, monotonic
}

// New builds a Filter for an expected capacity and desired false-positive
// rate. Both must be positive; capacity is rounded up to at least 1.
func New(capacity int, errorRate float64) *Filter {
	if capacity < 1 {
		capacity = 1
	}
	if errorRate <= 0 || errorRate >= 1 {
		errorRate = 0.001
	}

	n := float64(capacity)
	m := uint(math.Ceil(-n * math.Log(errorRate) / (math.Ln2 * math.Ln2)))
	if m < 1 {
		m = 1
	}
	k := uint(math.Ceil((float64(m) / n) * math.Ln2))
	if k < 1 {
		k = 1
	}

	return &Filter{
		bits: bitset.New(m),
		m:    m,
		k:    k,
	}
}

// Add inserts s into the filter. It reports whether s was not already
// (probably) present -- i.e. true means this was a new insertion, false
// means the filter believed s was already a member (and nothing changed).
func (f *Filter) Add(s string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.containsLocked(s) {
		return false
	}
	for i := uint(0); i < f.k; i++ {
		f.bits.Set(f.index(s, i))
	}
	f.count++
	return true
}

// Contains reports whether s might be in the filter. False positives are
// possible (bounded by the configured error rate); false negatives are not.
func (f *Filter) Contains(s string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.containsLocked(s)
}

func (f *Filter) containsLocked(s string) bool {
	for i := uint(0); i < f.k; i++ {
		if !f.bits.Test(f.index(s, i)) {
			return false
		}
	}
	return true
}

// Clear resets the filter to empty, preserving its sizing.
func (f *Filter) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bits.ClearAll()
	f.count = 0
}

// Count returns the approximate number of items added (monotonic; does
// not decrease on Clear-less operation, and resets to 0 on Clear).
func (f *Filter) Count() int64 {
	return atomic.LoadInt64(&f.count)
}

// Size returns the bit-array size m.
func (f *Filter) Size() uint {
	return f.m
}

// HashCount returns the number of hash functions k.
func (f *Filter) HashCount() uint {
	return f.k
}

// index computes the seed-th hash of s, reduced mod m: the full 128-bit
// MD5 digest of "s:seed" taken as a big-endian integer, mod m.
func (f *Filter) index(s string, seed uint) uint {
	input := s + ":" + strconv.FormatUint(uint64(seed), 10)
	sum := md5.Sum([]byte(input))

	digest := new(big.Int).SetBytes(sum[:])
	mod := new(big.Int).SetUint64(uint64(f.m))
	return uint(digest.Mod(digest, mod).Uint64())
}

func (f *Filter) String() string {
	return fmt.Sprintf("bloom.Filter{m=%d, k=%d, count=%d}", f.m, f.k, f.Count())
}
