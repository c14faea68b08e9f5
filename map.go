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

// package robinhood is a Go implementation of an open-addressing hash table
// using Robin Hood hashing with backward shift deletion. See also:
// https://cs.uwaterloo.ca/research/tr/1986/CS-86-14.pdf and
// https://codecapsule.com/2013/11/17/robin-hood-hashing-backward-shift-deletion/.
//
// The design follows Malte Skarupke's flat_hash_map:
//
//	https://probablydance.com/2017/02/26/i-wrote-the-fastest-hashtable/
//
// # Robin Hood Hashing
//
// A Robin Hood table is a linear probing table where every occupied slot
// records its displacement: the number of probe steps between the slot the
// key hashes to (its desired slot) and the slot it actually occupies. When
// an insertion probes past a slot whose occupant is closer to its desired
// slot than the key being inserted is to its own, the insertion takes the
// slot ("robs the rich") and continues probing on behalf of the evicted
// occupant. The effect is that displacements along a run of occupied slots
// never increase by more than one per step, and the variance of probe
// lengths is kept small.
//
// That ordering lets a lookup stop early. If a lookup has already probed d
// slots and finds an occupant with a displacement less than d, the key
// cannot be further along: had it been inserted it would have robbed this
// slot. Lookups therefore terminate at an empty slot, at a "richer" slot,
// or at the probe bound, whichever comes first.
//
// Every table has a probe bound (maxLookups). The slots array has
// maxLookups slots beyond the nominal capacity so that probes starting near
// the end of the table rarely need to wrap, though wrapping to index 0 is
// still handled. If an insertion would need to probe further than the bound
// the table is grown and the insertion restarted. The max load factor is
// 1/2.
//
// # Deletion
//
// Deletion does not use tombstones. When a key is removed, the following
// slots are shifted back by one position (decrementing their displacement)
// until an empty slot or a slot at its desired position is reached. This
// restores the state the table would have been in had the deleted key never
// been inserted, so probe lengths do not degrade with churn.
//
// # Hashing
//
// Both the hash function (Hasher) and the mapping from hash value to slot
// (Policy) are pluggable. By default a Map uses the same hash function as
// Go's builtin map[K]V and a power of two sized table.
package robinhood

import (
	"fmt"
	"math"
	"math/bits"
	"strings"
)

const (
	debug = false

	// minLookups is the smallest probe bound. The probe bound grows with
	// log2(capacity) beyond this, which in practice it never reaches.
	minLookups = 64
)

// Slot holds a key and value along with its displacement from its desired
// position. The zero value is an empty slot.
type Slot[K comparable, V any] struct {
	key   K
	value V
	// dist is the number of probe steps between the slot the key hashes to
	// and this slot. Only meaningful if occupied.
	dist     uint8
	occupied bool
}

// Map is an unordered map from keys to values with Put, Get, Delete, and All
// operations. It is an open-addressing table using Robin Hood hashing and
// backward shift deletion. By default, a Map[K,V] uses the same hash
// function as Go's builtin map[K]V, though a different hash function can be
// specified using the WithHasher or WithHash options, and the table sizing
// and index mapping can be changed using WithPolicy.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hasher Hasher[K]
	policy Policy
	// The allocator to use for the slots slice.
	allocator Allocator[K, V]
	// slots is capacity+maxLookups in length, or nil if the map has never
	// been allocated. The trailing maxLookups slots absorb probes that start
	// near the end of the table.
	slots []Slot[K, V]
	// The nominal number of slots as returned by the policy. Hash values are
	// mapped to [0, capacity).
	capacity int
	// The number of filled slots (i.e. the number of elements in the map).
	used int
	// The maximum displacement of any slot. An insertion that would exceed
	// this grows the table.
	maxLookups int
}

// New constructs a new Map sized to hold initialCapacity entries without
// resizing. If initialCapacity is 0 the map will start out with zero
// capacity and will allocate on the first insert. The zero value for a Map
// is not usable.
func New[K comparable, V any](initialCapacity int, options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hasher:     NewMapHasher[K](),
		policy:     PowerOf2Policy{},
		allocator:  defaultAllocator[K, V]{},
		maxLookups: minLookups,
	}

	for _, op := range options {
		op.apply(m)
	}

	if initialCapacity > 0 {
		m.reserve(initialCapacity)
	}

	m.checkInvariants()
	return m
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to use a Map after it has been closed, though Close itself is
// idempotent.
func (m *Map[K, V]) Close() {
	if m.slots != nil {
		m.allocator.FreeSlots(m.slots)
	}
	m.slots = nil
	m.capacity = 0
	m.used = 0
	m.allocator = nil
}

// Put inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. If the key was present the
// previous value is returned along with replaced=true.
func (m *Map[K, V]) Put(key K, value V) (prev V, replaced bool) {
	m.reserve(1)

	// Each pass of the outer loop is a complete insertion from the key's
	// desired slot. Note that key and value are swapped with the contents of
	// the table when a slot is robbed, so a restarted pass may be inserting
	// a different entry than the one Put was called with. That entry is
	// already known to be unique.
	for {
		h := m.hasher.Hash(key)
		i := m.index(h)
		if debug {
			fmt.Printf("put(%v): desired=%d capacity=%d\n", key, i, m.capacity)
		}

		for dist := 0; dist <= m.maxLookups; dist++ {
			s := &m.slots[i]
			if !s.occupied {
				*s = Slot[K, V]{key: key, value: value, dist: uint8(dist), occupied: true}
				m.used++
				if debug {
					fmt.Printf("put(inserting): index=%d dist=%d used=%d\n", i, dist, m.used)
				}
				m.checkInvariants()
				return prev, false
			}
			if s.key == key {
				if debug {
					fmt.Printf("put(updating): index=%d key=%v\n", i, key)
				}
				prev, s.value = s.value, value
				return prev, true
			}
			if int(s.dist) < dist {
				if debug {
					fmt.Printf("put(robbing): index=%d key=%v dist=%d<%d\n", i, s.key, s.dist, dist)
				}
				key, s.key = s.key, key
				value, s.value = s.value, value
				d := int(s.dist)
				s.dist = uint8(dist)
				dist = d
			}
			i = m.next(i)
		}

		// The probe bound was exceeded. Grow and start over with whatever
		// entry is currently pending.
		m.grow(key)
	}
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if i := m.find(key); i >= 0 {
		return m.slots[i].value, true
	}
	return value, false
}

// GetPtr returns a pointer to the value stored for the specified key,
// returning ok=false if the key is not present. The pointer is only valid
// until the next call to a method that mutates the map.
func (m *Map[K, V]) GetPtr(key K) (value *V, ok bool) {
	if i := m.find(key); i >= 0 {
		return &m.slots[i].value, true
	}
	return nil, false
}

// Contains returns true if the specified key is present in the map.
func (m *Map[K, V]) Contains(key K) bool {
	return m.find(key) >= 0
}

// Delete deletes the entry corresponding to the specified key from the map,
// returning the deleted value. It is a noop to delete a non-existent key, in
// which case ok=false is returned.
func (m *Map[K, V]) Delete(key K) (value V, ok bool) {
	i := m.find(key)
	if i < 0 {
		if debug {
			fmt.Printf("delete(%v): not found\n", key)
		}
		return value, false
	}

	value = m.slots[i].value
	m.slots[i] = Slot[K, V]{}
	m.used--
	if debug {
		fmt.Printf("delete(%v): index=%d used=%d\n", key, i, m.used)
	}

	// Backward shift: pull each following entry back into the hole until we
	// reach an empty slot or an entry that is already in its desired slot.
	// Shifting an entry with dist == 0 would move it in front of its desired
	// slot where lookups would never find it.
	for {
		j := m.next(i)
		s := &m.slots[j]
		if !s.occupied || s.dist == 0 {
			break
		}
		if debug {
			fmt.Printf("delete(shifting): %d -> %d key=%v\n", j, i, s.key)
		}
		m.slots[i] = *s
		m.slots[i].dist--
		*s = Slot[K, V]{}
		i = j
	}

	m.checkInvariants()
	return value, true
}

// Clear deletes all entries from the map, retaining the allocated storage.
func (m *Map[K, V]) Clear() {
	clear(m.slots)
	m.used = 0
	m.checkInvariants()
}

// Resize grows the table to policy.NewCapacity(capacityHint), rehashing
// every entry. The hint is raised as necessary so that the current entries
// fit within the max load factor. Resize never shrinks the table: it is a
// noop if the hint does not exceed the current capacity.
func (m *Map[K, V]) Resize(capacityHint int) {
	if n := slotsFor(m.used); capacityHint < n {
		capacityHint = n
	}
	if m.slots != nil && capacityHint <= m.capacity {
		return
	}
	newCapacity := m.policy.NewCapacity(capacityHint)
	if newCapacity < capacityHint {
		panic(fmt.Sprintf("policy %T returned capacity %d for requested capacity %d",
			m.policy, newCapacity, capacityHint))
	}
	m.resize(newCapacity)
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Empty returns true if the map contains no entries.
func (m *Map[K, V]) Empty() bool {
	return m.used == 0
}

// Capacity returns the number of slots that hash values are mapped to. At
// most half of them can be filled before the table is grown.
func (m *Map[K, V]) Capacity() int {
	return m.capacity
}

// Hasher returns the Hasher used by the map.
func (m *Map[K, V]) Hasher() Hasher[K] {
	return m.hasher
}

// Policy returns the Policy used by the map.
func (m *Map[K, V]) Policy() Policy {
	return m.policy
}

// Clone returns a copy of the map with its own storage. Keys and values are
// copied by assignment. The clone uses the same hasher, policy, and
// allocator, and has the same capacity and slot layout as the original.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		hasher:     m.hasher,
		policy:     m.policy,
		allocator:  m.allocator,
		capacity:   m.capacity,
		used:       m.used,
		maxLookups: m.maxLookups,
	}
	if m.slots != nil {
		c.slots = c.allocator.AllocSlots(len(m.slots))
		copy(c.slots, m.slots)
	}
	c.checkInvariants()
	return c
}

// String returns a dump of the slots of the table. Intended for debugging.
func (m *Map[K, V]) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  max-lookups=%d\n", m.capacity, m.used, m.maxLookups)
	for i := range m.slots {
		s := &m.slots[i]
		if !s.occupied {
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
			continue
		}
		h := m.hasher.Hash(s.key)
		fmt.Fprintf(&buf, "  %4d: %v [dist=%d desired=%d]\n", i, s.key, s.dist, m.index(h))
	}
	return buf.String()
}

// find returns the index of the slot holding key, or -1 if key is not
// present.
func (m *Map[K, V]) find(key K) int {
	if m.used == 0 {
		return -1
	}

	h := m.hasher.Hash(key)
	i := m.index(h)
	for dist := 0; dist <= m.maxLookups; dist++ {
		s := &m.slots[i]
		// An empty slot ends the probe run. A slot whose occupant is closer to
		// its desired slot than we are to ours proves key is absent: key would
		// have robbed this slot had it been inserted.
		if !s.occupied || int(s.dist) < dist {
			return -1
		}
		if s.key == key {
			return i
		}
		i = m.next(i)
	}
	return -1
}

// index returns the desired slot for hash value h.
func (m *Map[K, V]) index(h uint64) int {
	i := m.policy.Index(h, m.capacity)
	if invariants && (i < 0 || i >= m.capacity) {
		panic(fmt.Sprintf("invariant failed: policy %T mapped %016x to index %d outside [0, %d)",
			m.policy, h, i, m.capacity))
	}
	return i
}

// next returns the slot following i, wrapping around at the end of the
// slots array.
func (m *Map[K, V]) next(i int) int {
	i++
	if i == len(m.slots) {
		i = 0
	}
	return i
}

// reserve grows the table if necessary so that additional more entries fit
// within the max load factor.
func (m *Map[K, V]) reserve(additional int) {
	if m.used > math.MaxInt-additional {
		panic(fmt.Sprintf("element count overflow: %d + %d", m.used, additional))
	}
	if n := slotsFor(m.used + additional); n > m.capacity {
		m.Resize(n)
	}
}

// grow grows the table after inserting key exceeded the probe bound. Every
// slot in key's probe window is occupied at that point.
func (m *Map[K, V]) grow(key K) {
	// Keys with equal hash values share a desired slot at every capacity. If
	// the whole window holds key's hash value then maxLookups+2 keys collide
	// and no table can hold them.
	h := m.hasher.Hash(key)
	i := m.index(h)
	var same int
	for dist := 0; dist <= m.maxLookups; dist++ {
		if s := &m.slots[i]; s.occupied && m.hasher.Hash(s.key) == h {
			same++
		}
		i = m.next(i)
	}
	if same > m.maxLookups {
		panic(fmt.Sprintf("probe bound %d exceeded: %d keys hash to %016x with hasher %T",
			m.maxLookups, same+1, h, m.hasher))
	}
	if debug {
		fmt.Printf("grow: probe bound %d exceeded at capacity=%d used=%d\n",
			m.maxLookups, m.capacity, m.used)
	}
	m.Resize(m.capacity + 1)
}

// resize resizes the table by allocating a new slots array and reinserting
// each entry of the table into it (we know that no insertion here will Put
// an already-present key), and discards the old backing array.
func (m *Map[K, V]) resize(newCapacity int) {
	newMaxLookups := probeBound(newCapacity)
	oldSlots := m.slots

	m.slots = m.allocator.AllocSlots(newCapacity + newMaxLookups)
	clear(m.slots)
	oldCapacity := m.capacity
	m.capacity = newCapacity
	m.maxLookups = newMaxLookups

	if debug {
		fmt.Printf("resize: capacity=%d->%d  max-lookups=%d  used=%d\n",
			oldCapacity, newCapacity, newMaxLookups, m.used)
	}

	var moved int
	for i := range oldSlots {
		s := &oldSlots[i]
		if !s.occupied {
			continue
		}
		m.uncheckedPut(s.key, s.value)
		moved++
	}
	if moved != m.used {
		panic(fmt.Sprintf("invariant failed: moved %d entries during resize, but used count is %d",
			moved, m.used))
	}

	if oldSlots != nil {
		m.allocator.FreeSlots(oldSlots)
	}

	m.checkInvariants()
}

// uncheckedPut inserts an entry known not to be in the table. Used by resize
// to repopulate a freshly allocated table. The entry count is not adjusted.
func (m *Map[K, V]) uncheckedPut(key K, value V) {
	i := m.index(m.hasher.Hash(key))
	for dist := 0; ; dist++ {
		if dist > m.maxLookups {
			// The capacity and probe bound were computed together, and the
			// table is at most half full, so this indicates a hasher whose
			// output is inconsistent or degenerate.
			panic(fmt.Sprintf("invariant failed: probe bound %d exceeded while resizing to capacity %d (key=%v)\n%s",
				m.maxLookups, m.capacity, key, m))
		}
		s := &m.slots[i]
		if !s.occupied {
			*s = Slot[K, V]{key: key, value: value, dist: uint8(dist), occupied: true}
			return
		}
		if int(s.dist) < dist {
			key, s.key = s.key, key
			value, s.value = s.value, value
			d := int(s.dist)
			s.dist = uint8(dist)
			dist = d
		}
		i = m.next(i)
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		m.assertInvariants()
	}
}

// assertInvariants verifies the structure of the table, panicking with a
// dump of the table if it is inconsistent.
func (m *Map[K, V]) assertInvariants() {
	if m.capacity == 0 {
		if m.used != 0 || m.slots != nil {
			panic(fmt.Sprintf("invariant failed: unallocated map with used=%d len(slots)=%d",
				m.used, len(m.slots)))
		}
		return
	}
	if len(m.slots) != m.capacity+m.maxLookups {
		panic(fmt.Sprintf("invariant failed: len(slots)=%d, expected %d+%d\n%s",
			len(m.slots), m.capacity, m.maxLookups, m))
	}
	if slotsFor(m.used) > m.capacity {
		panic(fmt.Sprintf("invariant failed: %d entries exceed the max load factor of %d slots\n%s",
			m.used, m.capacity, m))
	}

	var used int
	n := len(m.slots)
	for i := range m.slots {
		s := &m.slots[i]
		if !s.occupied {
			var zero K
			if s.dist != 0 || s.key != zero {
				panic(fmt.Sprintf("invariant failed: slot(%d): empty slot is not zeroed\n%s", i, m))
			}
			continue
		}
		used++

		if int(s.dist) > m.maxLookups {
			panic(fmt.Sprintf("invariant failed: slot(%d): dist %d exceeds probe bound %d\n%s",
				i, s.dist, m.maxLookups, m))
		}
		desired := m.index(m.hasher.Hash(s.key))
		if (i-int(s.dist)+n)%n != desired {
			panic(fmt.Sprintf("invariant failed: slot(%d): %v has dist %d but desired index %d\n%s",
				i, s.key, s.dist, desired, m))
		}
		// Displacements along a run of occupied slots grow by at most one per
		// step, and a displaced entry is always preceded by an occupied slot.
		p := &m.slots[(i-1+n)%n]
		if s.dist > 0 && (!p.occupied || s.dist > p.dist+1) {
			panic(fmt.Sprintf("invariant failed: slot(%d): %v has dist %d following %s\n%s",
				i, s.key, s.dist, p.describe(), m))
		}
		if j := m.find(s.key); j != i {
			panic(fmt.Sprintf("invariant failed: slot(%d): %v found at %d\n%s", i, s.key, j, m))
		}
	}

	if used != m.used {
		panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
			used, m.used, m))
	}
}

func (s *Slot[K, V]) describe() string {
	if !s.occupied {
		return "empty"
	}
	return fmt.Sprintf("%v [dist=%d]", s.key, s.dist)
}

// slotsFor returns the number of slots needed to hold n entries within the
// max load factor of 1/2.
func slotsFor(n int) int {
	if n > math.MaxInt/2 {
		panic(fmt.Sprintf("element count overflow: %d entries", n))
	}
	return 2 * n
}

// probeBound returns the maximum displacement for a table of the specified
// capacity.
func probeBound(capacity int) int {
	return max(minLookups, bits.Len(uint(capacity))-1)
}
