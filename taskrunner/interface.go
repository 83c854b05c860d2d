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

// Package taskrunner implements a bounded-FIFO worker pool: an ActiveObject
// that dequeues one-shot Tasks and runs them on a cooperatively-grown set
// of worker goroutines. Grounded on Generics::TaskRunner.
package taskrunner

import (
	"context"
	"time"

	"github.com/nabbar/corerun/activeobject"
	libsem "github.com/nabbar/corerun/semaphore/sem"
	liberr "github.com/nabbar/corerun/errors"
)

// Task is a one-shot unit of work. Execute must not panic across the
// worker boundary; panics are recovered and reported through Callback.
type Task interface {
	Execute(ctx context.Context)
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context)

func (f TaskFunc) Execute(ctx context.Context) { f(ctx) }

// Runner is a bounded FIFO TaskRunner: an ActiveObject of up to maxThreads
// worker goroutines, started with startThreads and grown cooperatively as
// the backlog grows, fed by Enqueue.
type Runner interface {
	activeobject.ActiveObject

	// Enqueue appends task to the FIFO. If the runner is bounded
	// (maxPending > 0) and the queue is full, Enqueue blocks for up to
	// timeout (timeout <= 0 blocks indefinitely) and fails with Overflow
	// on expiry. An unbounded runner (maxPending == 0) never blocks here.
	Enqueue(task Task, timeout time.Duration) liberr.Error

	// Pending returns the current queue depth.
	Pending() int
	// Workers returns the number of worker goroutines spawned so far.
	Workers() uint32
}

// Option configures a Runner at construction time.
type Option func(r *runner)

// WithCallback installs the activeobject.Callback used to report task
// panics and lifecycle diagnostics.
func WithCallback(cb activeobject.Callback) Option {
	return func(r *runner) {
		if cb != nil {
			r.cb = cb
		}
	}
}

// WithParentContext sets the parent context.Context for worker goroutines
// and for Enqueue's unbounded wait path.
func WithParentContext(ctx context.Context) Option {
	return func(r *runner) {
		if ctx != nil {
			r.parent = ctx
		}
	}
}

// New builds a Runner. maxThreads is the hard worker cap (must be > 0).
// startThreads (clamped to [1, maxThreads]) workers start immediately on
// Activate; the rest are grown cooperatively. maxPending == 0 means an
// unbounded queue.
func New(maxThreads, startThreads uint32, maxPending int, opts ...Option) (Runner, liberr.Error) {
	if maxThreads == 0 {
		return nil, ErrorParamEmpty.Error()
	}

	if startThreads == 0 || startThreads > maxThreads {
		startThreads = maxThreads
	}

	r := &runner{
		maxThreads:   maxThreads,
		startThreads: startThreads,
		maxPending:   maxPending,
		cb:           noopCallback{},
		parent:       context.Background(),
	}

	for _, fct := range opts {
		if fct != nil {
			fct(r)
		}
	}

	if maxPending > 0 {
		r.notFull = libsem.New(r.parent, maxPending)
	}

	r.init()

	return r, nil
}

type noopCallback struct{}

func (noopCallback) Info(_ string)     {}
func (noopCallback) Warning(_ string)  {}
func (noopCallback) Error(_ string)    {}
func (noopCallback) Critical(_ string) {}
