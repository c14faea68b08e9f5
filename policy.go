// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package robinhood

import "math/bits"

// minCapacity is the smallest table either of the builtin policies will
// allocate.
const minCapacity = 64

// Policy determines the size of a Map's table and how a hash value is mapped
// to a slot within it. Policies must be deterministic:
//
//   - NewCapacity(n) must be >= n and must not decrease as n increases.
//   - Index(hash, slots) must be a pure function of its arguments and must
//     return a value in [0, slots).
//
// Index is never passed the current load of the table, so that a key is
// found where it was put regardless of how full the table was when it was
// inserted or when the table was last resized.
//
// The amortized cost of Map.Put depends on the growth law of NewCapacity. A
// policy that grows by a fixed increment rather than geometrically makes
// insertion quadratic. The Map does not guard against this.
type Policy interface {
	// NewCapacity returns the number of slots to allocate for a table that
	// was asked to hold at least requested slots.
	NewCapacity(requested int) int
	// Index maps hash to a slot index in [0, slots).
	Index(hash uint64, slots int) int
}

// PowerOf2Policy sizes tables to powers of two and maps hash values to slots
// by masking off the high bits. It is the default policy.
type PowerOf2Policy struct{}

var _ Policy = PowerOf2Policy{}

// NewCapacity implements Policy.
func (PowerOf2Policy) NewCapacity(requested int) int {
	return nextPowerOf2(max(requested, minCapacity))
}

// Index implements Policy.
func (PowerOf2Policy) Index(hash uint64, slots int) int {
	return int(hash & uint64(slots-1))
}

// PrimePolicy sizes tables to a prime number of slots and maps hash values
// to slots using modulo. Modulo is slower than masking, but uses all of the
// bits of the hash value which makes it more forgiving of hash functions that
// have poor entropy in their low bits.
//
// Capacities form a doubling ladder: the smallest prime that is >= the next
// power of two >= the requested capacity (67, 131, 257, 521, 1031, ...).
type PrimePolicy struct{}

var _ Policy = PrimePolicy{}

// NewCapacity implements Policy.
func (PrimePolicy) NewCapacity(requested int) int {
	return nextPrime(nextPowerOf2(max(requested, minCapacity)))
}

// Index implements Policy.
func (PrimePolicy) Index(hash uint64, slots int) int {
	return int(hash % uint64(slots))
}

// nextPowerOf2 returns the smallest power of 2 that is >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// nextPrime returns the smallest prime that is >= n.
func nextPrime(n int) int {
	if n <= 2 {
		return 2
	}
	if n%2 == 0 {
		n++
	}
	for !isPrime(n) {
		n += 2
	}
	return n
}

// isPrime reports whether the odd number n > 2 is prime using trial
// division. It is only called when a table is resized, which is already
// O(n) in the number of entries.
func isPrime(n int) bool {
	for d := 3; d <= n/d; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
