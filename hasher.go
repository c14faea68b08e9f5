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

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dolthub/maphash"
)

// Hasher computes hash values for keys of type K. Each call to Hash is an
// independent computation. Keys that compare equal must hash equal. The
// Map is correct for any Hasher satisfying that requirement, but probe
// lengths (and therefore performance) depend on how well the hash values are
// distributed. Keys whose hash values differ are eventually separated by
// growing the table. At most 65 distinct keys (one more than the minimum
// probe bound) may share a single hash value. Put panics when that limit is
// exceeded, as with a Hasher that returns a constant.
//
// None of the provided hashers are hardened against adversarially chosen
// keys. Callers exposed to untrusted keys should supply their own.
type Hasher[K comparable] interface {
	Hash(key K) uint64
}

// HasherFunc adapts an ordinary function to the Hasher interface.
type HasherFunc[K comparable] func(key K) uint64

// Hash implements Hasher.
func (f HasherFunc[K]) Hash(key K) uint64 {
	return f(key)
}

// MapHasher hashes keys using the same hash function as Go's builtin
// map[K]V, randomly seeded when the MapHasher is created. It is the default
// Hasher for a Map.
type MapHasher[K comparable] struct {
	h maphash.Hasher[K]
}

// NewMapHasher returns a MapHasher with a fresh random seed.
func NewMapHasher[K comparable]() MapHasher[K] {
	return MapHasher[K]{h: maphash.NewHasher[K]()}
}

// Hash implements Hasher.
func (m MapHasher[K]) Hash(key K) uint64 {
	return m.h.Hash(key)
}

// StringHasher hashes string keys with xxHash64. It is unseeded, so a given
// key hashes to the same value in every process.
type StringHasher[K ~string] struct{}

// Hash implements Hasher.
func (StringHasher[K]) Hash(key K) uint64 {
	return xxhash.Sum64String(string(key))
}
