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

package taskrunner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nabbar/corerun/activeobject"
	libatm "github.com/nabbar/corerun/atomic"
	liberr "github.com/nabbar/corerun/errors"
	libsem "github.com/nabbar/corerun/semaphore/sem"
)

type runner struct {
	maxThreads   uint32
	startThreads uint32
	maxPending   int

	cb     activeobject.Callback
	parent context.Context

	notFull libsem.Semaphore // nil when unbounded

	mu          sync.Mutex
	cond        *sync.Cond
	queue       []Task
	terminating bool
	idleWorkers int32
	spawned     uint32

	state  libatm.Value[activeobject.State]
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *runner) init() {
	r.cond = sync.NewCond(&r.mu)
	r.state = libatm.NewValue[activeobject.State]()
	r.state.Store(activeobject.NotActive)
}

func (r *runner) Activate() liberr.Error {
	r.mu.Lock()
	if r.state.Load() != activeobject.NotActive {
		r.mu.Unlock()
		return ErrorAlreadyActive.Error()
	}

	ctx, cancel := context.WithCancel(r.parent)
	r.ctx = ctx
	r.cancel = cancel
	r.terminating = false
	r.spawned = r.startThreads
	r.state.Store(activeobject.Active)
	n := r.startThreads
	r.mu.Unlock()

	r.wg.Add(int(n))
	for i := uint32(0); i < n; i++ {
		go r.runWorker(ctx)
	}

	return nil
}

func (r *runner) Deactivate() liberr.Error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.Load() != activeobject.Active {
		return nil
	}

	r.state.Store(activeobject.Deactivating)
	r.terminating = true
	r.cond.Broadcast()
	if r.cancel != nil {
		r.cancel()
	}

	return nil
}

func (r *runner) Wait() liberr.Error {
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

func (r *runner) Active() bool {
	return r.state.Load() == activeobject.Active
}

func (r *runner) State() activeobject.State {
	return r.state.Load()
}

func (r *runner) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

func (r *runner) Workers() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spawned
}

// Enqueue appends task to the FIFO, blocking on the admission semaphore
// when the runner is bounded. Grounded on TaskRunner::enqueue_task.
func (r *runner) Enqueue(task Task, timeout time.Duration) liberr.Error {
	if task == nil {
		return ErrorParamEmpty.Error()
	}

	if r.state.Load() != activeobject.Active {
		return ErrorNotActive.Error()
	}

	if r.notFull != nil {
		var err error
		if timeout > 0 {
			err = r.notFull.NewWorkerTimeout(timeout)
		} else {
			err = r.notFull.NewWorker()
		}
		if err != nil {
			return ErrorOverflow.Error()
		}
	}

	r.mu.Lock()
	r.queue = append(r.queue, task)
	pending := len(r.queue)
	idle := r.idleWorkers
	grow := pending > int(idle) && r.spawned < r.maxThreads
	if grow {
		r.spawned++
	}
	ctx := r.ctx
	r.mu.Unlock()

	if grow {
		r.wg.Add(1)
		go r.runWorker(ctx)
	}

	r.cond.Signal()

	return nil
}

// runWorker is the SingleJob::work() loop: pop one task, release the
// admission slot before executing it, and never let a panic escape.
func (r *runner) runWorker(ctx context.Context) {
	defer r.wg.Done()

	for {
		r.mu.Lock()
		for len(r.queue) == 0 && !r.terminating {
			r.idleWorkers++
			r.cond.Wait()
			r.idleWorkers--
		}

		if len(r.queue) == 0 {
			r.mu.Unlock()
			return
		}

		task := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()

		if r.notFull != nil {
			r.notFull.DeferWorker()
		}

		r.runTask(ctx, task)
	}
}

func (r *runner) runTask(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cb.Error(fmt.Sprintf("taskrunner: task panic: %v", rec))
		}
	}()

	task.Execute(ctx)
}
