/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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

package reactor

import (
	"context"
	"fmt"
	"sync"

	"github.com/nabbar/corerun/activeobject"
	libatm "github.com/nabbar/corerun/atomic"
	liberr "github.com/nabbar/corerun/errors"
)

// shard owns one poller, the set of descriptors currently armed on it, and
// their handlers. Only the shard's own goroutine ever blocks in wait; any
// other goroutine mutating the handler set goes through mu and wakes the
// poller via signal so a blocked wait notices the change.
type shard struct {
	idx     int
	poller  *epollPoller
	mu      sync.Mutex
	handler map[int]Handler
}

// readyItem hands a ready descriptor off from a shard's poll loop to the
// dispatcher pool, carrying enough context to re-arm or remove it.
type readyItem struct {
	fd    int
	h     Handler
	shard *shard
}

type reactor struct {
	cb          activeobject.Callback
	parent      context.Context
	dispatchers uint32
	queueSize   int

	shards [Shards]*shard

	mu     sync.Mutex
	state  libatm.Value[activeobject.State]
	wg     sync.WaitGroup
	cancel context.CancelFunc
	ready  chan readyItem
}

func (r *reactor) initShards() error {
	for i := 0; i < Shards; i++ {
		p, err := newEpollPoller()
		if err != nil {
			for j := 0; j < i; j++ {
				_ = r.shards[j].poller.close()
			}
			return err
		}
		r.shards[i] = &shard{idx: i, poller: p, handler: make(map[int]Handler)}
	}
	return nil
}

func (r *reactor) initObject() {
	r.state = libatm.NewValue[activeobject.State]()
	r.state.Store(activeobject.NotActive)
}

// Activate starts every shard's poll loop and the dispatcher pool.
func (r *reactor) Activate() liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Load() != activeobject.NotActive {
		return ErrorAlreadyActive.Error()
	}

	ctx, cancel := context.WithCancel(r.parent)
	r.cancel = cancel
	r.ready = make(chan readyItem, r.queueSize)
	r.state.Store(activeobject.Active)

	r.wg.Add(Shards + int(r.dispatchers))
	for _, s := range r.shards {
		go r.runShard(ctx, s)
	}
	for i := uint32(0); i < r.dispatchers; i++ {
		go r.runDispatcher(ctx)
	}

	return nil
}

func (r *reactor) runShard(ctx context.Context, s *shard) {
	defer r.wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.cb.Error(fmt.Sprintf("reactor: shard %d panic: %v", s.idx, rec))
		}
	}()
	defer func() {
		_ = s.poller.close()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		ready, err := s.poller.wait(-1)
		if err != nil {
			r.cb.Error(fmt.Sprintf("reactor: shard %d wait: %v", s.idx, err))
			continue
		}

		if ctx.Err() != nil {
			return
		}

		for _, fd := range ready {
			s.mu.Lock()
			h, ok := s.handler[fd]
			s.mu.Unlock()

			if !ok {
				continue
			}

			select {
			case r.ready <- readyItem{fd: fd, h: h, shard: s}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *reactor) runDispatcher(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-r.ready:
			r.dispatch(item)
		}
	}
}

func (r *reactor) dispatch(item readyItem) {
	res := -1

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.cb.Error(fmt.Sprintf("reactor: handler panic on fd %d: %v", item.fd, rec))
				res = -1
			}
		}()
		res = item.h.HandleInput(item.fd)
	}()

	if res >= 0 {
		if err := item.shard.poller.rearm(item.fd); err != nil {
			r.cb.Warning(fmt.Sprintf("reactor: rearm fd %d: %v", item.fd, err))
		}
		return
	}

	item.shard.mu.Lock()
	delete(item.shard.handler, item.fd)
	item.shard.mu.Unlock()
	_ = item.shard.poller.remove(item.fd)
}

// Deactivate signals every shard to stop, never blocking on their exit.
func (r *reactor) Deactivate() liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Load() != activeobject.Active {
		return nil
	}

	r.state.Store(activeobject.Deactivating)
	if r.cancel != nil {
		r.cancel()
	}
	for _, s := range r.shards {
		s.poller.signal()
	}

	return nil
}

// Wait blocks until every shard and dispatcher goroutine has returned.
func (r *reactor) Wait() liberr.Error {
	if r.state.Load() == activeobject.NotActive {
		return nil
	}

	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Load() == activeobject.Deactivating {
		r.state.Store(activeobject.NotActive)
	}

	return nil
}

func (r *reactor) Active() bool {
	return r.state.Load() == activeobject.Active
}

func (r *reactor) State() activeobject.State {
	return r.state.Load()
}

// Register arms fd on its shard (fd % Shards) and installs h as its
// handler.
func (r *reactor) Register(fd int, h Handler) liberr.Error {
	if r.state.Load() != activeobject.Active {
		return ErrorClosed.Error()
	}

	s := r.shards[fd%Shards]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handler[fd]; ok {
		return ErrorAlreadyRegistered.Error()
	}

	if err := s.poller.add(fd); err != nil {
		return ErrorPollerInit.Error(err)
	}

	s.handler[fd] = h
	s.poller.signal()

	return nil
}

// Remove unregisters fd from its shard, if currently registered.
func (r *reactor) Remove(fd int) {
	s := r.shards[fd%Shards]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handler[fd]; !ok {
		return
	}

	delete(s.handler, fd)
	_ = s.poller.remove(fd)
}
