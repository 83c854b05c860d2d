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

package signalqueue

import (
	"sync"
	"sync/atomic"

	"github.com/nabbar/corerun/reactor"
	liberr "github.com/nabbar/corerun/errors"
	"golang.org/x/sys/unix"
)

const (
	tagData byte = 1
	tagQuit byte = 2
	tagChk  byte = 3
)

type queue[T any] struct {
	dataFn  DataFunc[T]
	quitFn  QuitFunc
	checkFn CheckFunc

	mu    sync.Mutex
	items []T

	pendingData atomic.Bool
	pendingQuit atomic.Bool
	pendingChk  atomic.Bool

	amu     sync.Mutex
	r       reactor.Reactor
	readFd  int
	writeFd int
}

func (q *queue[T]) Push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()

	// A tagged byte is written only on the empty -> non-empty transition
	// of the pending-notification flag: further pushes before the
	// consumer drains coalesce into the same wakeup.
	if q.pendingData.CompareAndSwap(false, true) {
		q.signal(tagData)
	}
}

func (q *queue[T]) PushQuit() {
	if q.pendingQuit.CompareAndSwap(false, true) {
		q.signal(tagQuit)
	}
}

func (q *queue[T]) PushCheck() {
	if q.pendingChk.CompareAndSwap(false, true) {
		q.signal(tagChk)
	}
}

func (q *queue[T]) signal(tag byte) {
	q.amu.Lock()
	fd := q.writeFd
	q.amu.Unlock()

	if fd <= 0 {
		return
	}

	_, _ = unix.Write(fd, []byte{tag})
}

// Attach creates the notification pipe and registers its read end with r.
func (q *queue[T]) Attach(r reactor.Reactor) liberr.Error {
	if r == nil {
		return ErrorParamEmpty.Error()
	}

	q.amu.Lock()
	defer q.amu.Unlock()

	if q.r != nil {
		return ErrorAlreadyAttached.Error()
	}

	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return ErrorPipeInit.Error(err)
	}

	if err := r.Register(fds[0], q); err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return err
	}

	q.r = r
	q.readFd = fds[0]
	q.writeFd = fds[1]

	return nil
}

func (q *queue[T]) Detach() {
	q.amu.Lock()
	defer q.amu.Unlock()

	q.detachLocked()
}

func (q *queue[T]) detachLocked() {
	if q.r == nil {
		return
	}

	q.r.Remove(q.readFd)
	_ = unix.Close(q.readFd)
	_ = unix.Close(q.writeFd)

	q.r = nil
	q.readFd = 0
	q.writeFd = 0
}

// HandleInput implements reactor.Handler: it drains every byte currently
// available on the pipe, classifies them, and invokes at most one callback
// per kind before returning: check first, then data, then quit. A drained
// quit unregisters the queue.
func (q *queue[T]) HandleInput(fd int) int {
	var buf [256]byte

	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}

	if q.pendingChk.CompareAndSwap(true, false) && q.checkFn != nil {
		q.checkFn()
	}

	if q.pendingData.CompareAndSwap(true, false) {
		q.drainData()
	}

	if q.pendingQuit.CompareAndSwap(true, false) {
		if q.quitFn != nil {
			q.quitFn()
		}
		q.Detach()
		return -1
	}

	return 0
}

func (q *queue[T]) drainData() {
	q.mu.Lock()
	items := q.items
	q.items = nil
	q.mu.Unlock()

	if q.dataFn == nil {
		return
	}

	for _, it := range items {
		q.dataFn(it)
	}
}

// Flush drains every pending item synchronously and detaches the queue.
func (q *queue[T]) Flush() {
	q.drainData()
	q.Detach()
}
