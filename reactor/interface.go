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

// Package reactor implements an edge-triggered, sharded I/O multiplexer.
// Registered file descriptors are partitioned across a fixed number of
// shards (fd % Shards); each shard owns an independent platform poller and
// a self-pipe used to interrupt a blocked wait when its waited set changes
// from another goroutine. A descriptor becoming ready is cleared from the
// waited set (edge-trigger semantics for that arming), handed off through a
// bounded global ready queue, and picked up by one of a small pool of
// dispatcher goroutines, so a single slow Handler never blocks a shard's
// poll loop. Grounded on Generics::Reactor, with the select-based backend
// replaced by the host's edge-triggered facility (epoll on Linux).
package reactor

import (
	"context"

	"github.com/nabbar/corerun/activeobject"
	liberr "github.com/nabbar/corerun/errors"
)

// Shards is the fixed number of independent pollers a Reactor partitions
// registered descriptors across.
const Shards = 8

// Handler is invoked by a dispatcher goroutine once its descriptor becomes
// ready for reading. A return value >= 0 re-arms the descriptor for
// further events; a negative return value unregisters it from its shard,
// mirroring Generics::Reactor's handle_input contract.
type Handler interface {
	HandleInput(fd int) int
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(fd int) int

func (f HandlerFunc) HandleInput(fd int) int { return f(fd) }

// Reactor multiplexes read-readiness across Shards independent pollers and
// dispatches ready descriptors to a pool of worker goroutines.
type Reactor interface {
	activeobject.ActiveObject

	// Register arms fd for read-readiness on its shard (fd % Shards) and
	// associates h as its handler. Registering an already-registered fd
	// fails with ErrorAlreadyRegistered. The reactor must be Active.
	Register(fd int, h Handler) liberr.Error

	// Remove unregisters fd from its shard. It is a no-op if fd is not
	// currently registered.
	Remove(fd int)
}

// Option configures a Reactor at construction time.
type Option func(r *reactor)

// WithCallback installs the activeobject.Callback used to report shard and
// dispatcher failures.
func WithCallback(cb activeobject.Callback) Option {
	return func(r *reactor) {
		if cb != nil {
			r.cb = cb
		}
	}
}

// WithParentContext sets the parent context.Context for shard and
// dispatcher goroutines.
func WithParentContext(ctx context.Context) Option {
	return func(r *reactor) {
		if ctx != nil {
			r.parent = ctx
		}
	}
}

// WithDispatchers sets how many dispatcher goroutines drain the global
// ready queue. Defaults to Shards.
func WithDispatchers(n uint32) Option {
	return func(r *reactor) {
		if n > 0 {
			r.dispatchers = n
		}
	}
}

// WithQueueSize sets the capacity of the global ready queue handed from
// shards to dispatchers. Defaults to 1024.
func WithQueueSize(n int) Option {
	return func(r *reactor) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// New builds a Reactor. It returns an error immediately if any shard's
// poller fails to initialize (e.g. epoll_create1 failure); no goroutines
// are started until Activate is called.
func New(opts ...Option) (Reactor, liberr.Error) {
	r := &reactor{
		cb:          noopCallback{},
		parent:      context.Background(),
		dispatchers: Shards,
		queueSize:   1024,
	}

	for _, fct := range opts {
		if fct != nil {
			fct(r)
		}
	}

	if err := r.initShards(); err != nil {
		return nil, ErrorPollerInit.Error(err)
	}

	r.initObject()

	return r, nil
}

type noopCallback struct{}

func (noopCallback) Info(_ string)     {}
func (noopCallback) Warning(_ string)  {}
func (noopCallback) Error(_ string)    {}
func (noopCallback) Critical(_ string) {}
