/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package boundedmap implements a thread-safe LRU cache with idle-timeout
// eviction and a user-supplied size policy, bounded by a total-size
// budget rather than an entry count. Grounded on BoundedMap.hpp.
package boundedmap

import "time"

// SizeFunc computes the weight of a (key, value) pair against the map's
// bound. The zero value (nil) defaults every entry to a weight of 1, so
// the bound degenerates to an entry-count limit.
type SizeFunc[K comparable, V any] func(key K, val V) int

// Stats are the six counters BoundedMap.hpp tracks. A successful admission
// increments Inserted plus OutdatedEvictions once per evicted entry; a
// present key on Insert increments Redundant; a failed admission or a
// replacement that does not fit increments Rejections; a successful
// InsertOrUpdate on a present key increments Replacements (plus any
// OutdatedEvictions); Update increments UpdateEvictions when it drops the
// entry itself. Erase, Clear and a successful Update increment none.
type Stats struct {
	Inserted           uint64
	Redundant          uint64
	OutdatedEvictions  uint64
	UpdateEvictions    uint64
	Rejections         uint64
	Replacements       uint64
}

// Map is a thread-safe mapping from K to V bounded by total size, evicting
// the least-recently-used expired entry to make room for new ones.
type Map[K comparable, V any] interface {
	// Find returns the value for key and promotes it to MRU on hit.
	Find(key K) (V, bool)

	// Insert admits (key, val) if key is absent and the bound allows it
	// after evicting expired LRU entries. Returns false if key already
	// exists (no mutation) or if admission failed.
	Insert(key K, val V) bool

	// InsertOrUpdate replaces the value if key exists (rechecking size),
	// otherwise inserts. Returns false if admission of a new entry failed,
	// or if a larger replacement value does not fit; in the latter case
	// the stored value is left unchanged.
	InsertOrUpdate(key K, val V) bool

	// Update recomputes the size of the stored value for key (after an
	// external, in-place mutation) and evicts expired neighbors to make
	// room, or drops the entry itself if that's impossible. Returns false
	// if key is absent.
	Update(key K) bool

	// Erase removes key if present and reports whether it was present.
	Erase(key K) bool

	// Clear removes every entry.
	Clear()

	// Size returns the current Σ size of all stored entries.
	Size() int

	// Bound returns the configured size budget.
	Bound() int

	// Len returns the number of stored entries.
	Len() int

	// CopyTo calls fct for every stored entry in MRU-to-LRU order. fct
	// must not call back into the Map.
	CopyTo(fct func(key K, val V))

	// Stats returns a snapshot of the six mutation counters.
	Stats() Stats

	// ResetStats zeroes the six mutation counters atomically.
	ResetStats()
}

// Option configures a Map at construction time.
type Option[K comparable, V any] func(m *boundedMap[K, V])

// WithSizeFunc installs the size policy used to weigh entries against
// Bound. The default weighs every entry as 1.
func WithSizeFunc[K comparable, V any](fn SizeFunc[K, V]) Option[K, V] {
	return func(m *boundedMap[K, V]) {
		if fn != nil {
			m.sizeFn = fn
		}
	}
}

// New builds a Map with the given total-size bound and idle timeout.
// An entry becomes evictable once it has gone untouched for longer than
// idleTimeout; idleTimeout <= 0 makes every entry evictable at once, so
// the map behaves as a pure LRU cache.
func New[K comparable, V any](bound int, idleTimeout time.Duration, opts ...Option[K, V]) Map[K, V] {
	m := &boundedMap[K, V]{
		bound:   bound,
		timeout: idleTimeout,
		sizeFn:  func(K, V) int { return 1 },
		index:   make(map[K]*node[K, V], 16),
	}

	for _, fct := range opts {
		if fct != nil {
			fct(m)
		}
	}

	return m
}
