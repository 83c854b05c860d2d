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

package periodic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/corerun/activeobject"
	libatm "github.com/nabbar/corerun/atomic"
	liberr "github.com/nabbar/corerun/errors"
)

type taskEntry struct {
	ref     TaskRef
	period  time.Duration
	task    Task
	mode    AddMode
	stopCh  chan struct{}
	forceCh chan struct{}
}

type runner struct {
	cb     activeobject.Callback
	parent context.Context

	mu      sync.Mutex
	tasks   map[TaskRef]*taskEntry
	nextRef uint64

	state  libatm.Value[activeobject.State]
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func (r *runner) init() {
	r.state = libatm.NewValue[activeobject.State]()
	r.state.Store(activeobject.NotActive)
	r.tasks = make(map[TaskRef]*taskEntry)
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
	r.state.Store(activeobject.Active)

	entries := make([]*taskEntry, 0, len(r.tasks))
	for _, e := range r.tasks {
		entries = append(entries, e)
	}
	r.mu.Unlock()

	r.wg.Add(len(entries))
	for _, e := range entries {
		go r.loop(ctx, e)
	}

	return nil
}

func (r *runner) Deactivate() liberr.Error {
	r.mu.Lock()
	if r.state.Load() != activeobject.Active {
		r.mu.Unlock()
		return nil
	}

	r.state.Store(activeobject.Deactivating)
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

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

func (r *runner) Tasks() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// AddTask registers task. For RunImmediately the synchronous run happens
// here, before the periodic loop starts, matching add_task(silent=false).
func (r *runner) AddTask(period time.Duration, task Task, mode AddMode) TaskRef {
	ref := TaskRef(atomic.AddUint64(&r.nextRef, 1))
	e := &taskEntry{
		ref:     ref,
		period:  period,
		task:    task,
		mode:    mode,
		stopCh:  make(chan struct{}),
		forceCh: make(chan struct{}, 1),
	}

	r.mu.Lock()
	r.tasks[ref] = e
	active := r.state.Load() == activeobject.Active
	ctx := r.ctx
	r.mu.Unlock()

	ictx := ctx
	if !active {
		ictx = r.parent
	}

	if mode == RunImmediately {
		r.invoke(ictx, e, false)
	}

	if active {
		r.wg.Add(1)
		go r.loop(ctx, e)
	}

	return ref
}

// StopTask removes a single task and interrupts its sleep so its worker
// exits.
func (r *runner) StopTask(ref TaskRef) {
	r.mu.Lock()
	e, ok := r.tasks[ref]
	if ok {
		delete(r.tasks, ref)
	}
	r.mu.Unlock()

	if ok {
		close(e.stopCh)
	}
}

// EnforceStart interrupts the task's sleep and runs it with forced=true.
func (r *runner) EnforceStart(ref TaskRef) {
	r.mu.Lock()
	e, ok := r.tasks[ref]
	r.mu.Unlock()

	if !ok {
		return
	}

	select {
	case e.forceCh <- struct{}{}:
	default:
	}
}

// loop is the one-worker-per-task sleep/invoke cycle. Grounded on
// Periodic::PeriodicTaskJob::work.
func (r *runner) loop(ctx context.Context, e *taskEntry) {
	defer r.wg.Done()

	sleepFor := e.period

	if e.mode == SkipInitialRun {
		ok, forced := r.sleepOrSignal(ctx, e, e.period)
		if !ok {
			return
		}
		if forced {
			r.invoke(ctx, e, true)
		}
	}

	for {
		ok, forced := r.sleepOrSignal(ctx, e, sleepFor)
		if !ok {
			return
		}

		start := time.Now()
		r.invoke(ctx, e, forced)

		sleepFor = e.period - time.Since(start)
		if sleepFor < 0 {
			sleepFor = 0
		}
	}
}

// sleepOrSignal waits for d, an EnforceStart signal, a StopTask, or
// cancellation — whichever comes first.
func (r *runner) sleepOrSignal(ctx context.Context, e *taskEntry, d time.Duration) (cont bool, forced bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true, false
	case <-e.forceCh:
		return true, true
	case <-e.stopCh:
		return false, false
	case <-ctx.Done():
		return false, false
	}
}

func (r *runner) invoke(ctx context.Context, e *taskEntry, forced bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cb.Error(fmt.Sprintf("periodic: task panic: %v", rec))
		}
	}()

	e.task(ctx, forced)
}
