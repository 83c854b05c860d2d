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

package boundedmap

import (
	"container/list"
	"sync"
	"time"
)

// node is the payload of every recency-queue element: the hash index and
// the doubly-linked queue share this pointer, so promoting an entry to
// MRU never needs a second lookup.
type node[K comparable, V any] struct {
	key      K
	val      V
	size     int
	lastUsed time.Time
	elem     *list.Element
}

type boundedMap[K comparable, V any] struct {
	mu      sync.Mutex
	bound   int
	timeout time.Duration
	sizeFn  SizeFunc[K, V]

	index  map[K]*node[K, V]
	order  list.List // front = MRU, back = LRU
	total  int
	stats  Stats
}

func (m *boundedMap[K, V]) Find(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.index[key]
	if !ok {
		var zero V
		return zero, false
	}

	m.touch(n)
	return n.val, true
}

// Insert admits (key, val) per the admission algorithm in BoundedMap.hpp:
// reject immediately if the new size alone exceeds bound; otherwise evict
// the LRU entry while it is expired and the budget still doesn't fit;
// give up (no partial insertion) the moment the LRU entry isn't expired.
func (m *boundedMap[K, V]) Insert(key K, val V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[key]; ok {
		m.stats.Redundant++
		return false
	}

	return m.admit(key, val)
}

func (m *boundedMap[K, V]) InsertOrUpdate(key K, val V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n, ok := m.index[key]; ok {
		newSize := m.sizeFn(key, val)
		delta := newSize - n.size

		if delta > 0 && m.total+delta > m.bound {
			if !m.evictForRoom(n, delta) {
				m.stats.Rejections++
				return false
			}
		}

		m.total += newSize - n.size
		n.val = val
		n.size = newSize
		m.touch(n)
		m.stats.Replacements++
		return true
	}

	return m.admit(key, val)
}

// Update recomputes the stored entry's size (the caller mutated the value
// in place) and walks the recency queue from the LRU end, skipping the
// entry itself, accumulating expired neighbors until the new size fits;
// it commits all of them atomically, or evicts the entry itself the
// moment it meets a non-expired neighbor first.
func (m *boundedMap[K, V]) Update(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.index[key]
	if !ok {
		return false
	}

	newSize := m.sizeFn(key, n.val)
	delta := newSize - n.size

	if delta <= 0 {
		m.total += delta
		n.size = newSize
		return true
	}

	if !m.evictForRoom(n, delta) {
		m.removeNode(n)
		m.stats.UpdateEvictions++
		return false
	}

	m.total += delta
	n.size = newSize
	return true
}

// evictForRoom walks the queue from the LRU end (back), skipping skip,
// collecting expired nodes whose removal would free enough room for
// delta additional size. On success it removes them all and returns
// true; if it meets a non-expired node before reaching the target it
// rolls back nothing (nothing was removed yet) and returns false.
func (m *boundedMap[K, V]) evictForRoom(skip *node[K, V], delta int) bool {
	if m.total+delta <= m.bound {
		return true
	}

	now := time.Now()
	freed := 0
	var victims []*node[K, V]

	for e := m.order.Back(); e != nil; e = e.Prev() {
		n := e.Value.(*node[K, V])
		if n == skip {
			continue
		}
		if m.timeout > 0 && now.Sub(n.lastUsed) < m.timeout {
			return false
		}

		victims = append(victims, n)
		freed += n.size
		if m.total+delta-freed <= m.bound {
			for _, v := range victims {
				m.removeNode(v)
				m.stats.OutdatedEvictions++
			}
			return true
		}
	}

	return false
}

func (m *boundedMap[K, V]) admit(key K, val V) bool {
	size := m.sizeFn(key, val)
	if size > m.bound {
		m.stats.Rejections++
		return false
	}

	if !m.evictForRoom(nil, size) {
		m.stats.Rejections++
		return false
	}

	n := &node[K, V]{key: key, val: val, size: size, lastUsed: time.Now()}
	n.elem = m.order.PushFront(n)
	m.index[key] = n
	m.total += size
	m.stats.Inserted++

	return true
}

func (m *boundedMap[K, V]) touch(n *node[K, V]) {
	n.lastUsed = time.Now()
	m.order.MoveToFront(n.elem)
}

func (m *boundedMap[K, V]) removeNode(n *node[K, V]) {
	m.order.Remove(n.elem)
	delete(m.index, n.key)
	m.total -= n.size
}

func (m *boundedMap[K, V]) Erase(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.index[key]
	if !ok {
		return false
	}

	m.removeNode(n)
	return true
}

func (m *boundedMap[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index = make(map[K]*node[K, V], 16)
	m.order.Init()
	m.total = 0
}

func (m *boundedMap[K, V]) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

func (m *boundedMap[K, V]) Bound() int {
	return m.bound
}

func (m *boundedMap[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.index)
}

func (m *boundedMap[K, V]) CopyTo(fct func(key K, val V)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for e := m.order.Front(); e != nil; e = e.Next() {
		n := e.Value.(*node[K, V])
		fct(n.key, n.val)
	}
}

func (m *boundedMap[K, V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *boundedMap[K, V]) ResetStats() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = Stats{}
}
