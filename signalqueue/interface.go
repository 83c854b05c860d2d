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

// Package signalqueue implements a many-writer, single-reader hand-off queue: a
// mutex-protected item list paired with a self-pipe registered against a
// reactor.Reactor, so a producer goroutine can wake a reactor-driven
// consumer without the consumer ever polling. Grounded on
// Generics::SignalQueue; the reactor backing it replaces the source's own
// shard/select plumbing per the same redesign note.
//
// Same-kind notifications coalesce: pushing data while data is already
// pending, or requesting quit/check while one is already pending, writes no
// further byte to the pipe, so a busy producer never floods the consumer
// with more than one callback invocation per drain per kind.
package signalqueue

import (
	"github.com/nabbar/corerun/reactor"
	liberr "github.com/nabbar/corerun/errors"
)

// DataFunc is invoked once per drained item, in FIFO order.
type DataFunc[T any] func(item T)

// QuitFunc is invoked once when a Quit notification is drained. After it
// returns, the queue detaches itself from its reactor.
type QuitFunc func()

// CheckFunc is invoked once when a Check notification is drained, used for
// periodic re-evaluation hooks such as a connection's close timer.
type CheckFunc func()

// Queue is a thread-safe FIFO of items of type T, delivered to a single
// consumer goroutine (a reactor dispatcher) rather than polled.
type Queue[T any] interface {
	// Push appends item to the FIFO. Safe to call from any goroutine.
	Push(item T)

	// PushQuit requests that the consumer invoke its QuitFunc and the
	// queue detach from its reactor.
	PushQuit()

	// PushCheck requests that the consumer invoke its CheckFunc.
	PushCheck()

	// Attach registers the queue's notification pipe with r. Fails with
	// ErrorAlreadyAttached if already attached.
	Attach(r reactor.Reactor) liberr.Error

	// Detach unregisters the queue from its reactor, if attached.
	Detach()

	// Flush synchronously drains every pending item through DataFunc and
	// detaches the queue. Used for pool teardown, where no reactor
	// dispatch loop may be left to deliver the backlog.
	Flush()
}

// New builds a Queue invoking dataFn for each pushed item, quitFn once per
// drained PushQuit, and checkFn once per drained PushCheck. dataFn must not
// be nil; quitFn and checkFn may be nil, in which case the corresponding
// notification is drained silently.
func New[T any](dataFn DataFunc[T], quitFn QuitFunc, checkFn CheckFunc) Queue[T] {
	return &queue[T]{
		dataFn:  dataFn,
		quitFn:  quitFn,
		checkFn: checkFn,
	}
}
