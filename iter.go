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

// Cursor is a forward-only iterator over the entries of a Map, created by
// Map.Iter. Entries are returned in slot order, which is unrelated to
// insertion order. A Cursor cannot be rewound; call Map.Iter again to start
// a new traversal.
//
// The Map must not be mutated while a Cursor is in use.
type Cursor[K comparable, V any] struct {
	slots     []Slot[K, V]
	index     int
	remaining int
}

// Iter returns a Cursor positioned before the first entry of the map.
func (m *Map[K, V]) Iter() *Cursor[K, V] {
	return &Cursor[K, V]{
		slots:     m.slots,
		remaining: m.used,
	}
}

// Next returns the next entry, or ok=false once every entry has been
// returned.
func (c *Cursor[K, V]) Next() (key K, value V, ok bool) {
	if c.remaining == 0 {
		return key, value, false
	}
	for c.index < len(c.slots) {
		s := &c.slots[c.index]
		c.index++
		if s.occupied {
			c.remaining--
			return s.key, s.value, true
		}
	}
	return key, value, false
}

// Remaining returns the number of entries the cursor has yet to return.
func (c *Cursor[K, V]) Remaining() int {
	return c.remaining
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, range stops the iteration. The map must not be
// mutated during iteration.
//
// The signature of All conforms to the range-over-function Go proposal:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	c := m.Iter()
	for {
		k, v, ok := c.Next()
		if !ok || !yield(k, v) {
			return
		}
	}
}
