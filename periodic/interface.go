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

// Package periodic implements a runner composing one dedicated worker
// goroutine per recurring task, coordinated as a single ActiveObject.
// Grounded on Periodic.cpp.
package periodic

import (
	"context"
	"time"

	"github.com/nabbar/corerun/activeobject"
)

// Task is the recurring unit of work. forced reports whether the
// invocation was triggered by EnforceStart rather than the regular
// period.
type Task func(ctx context.Context, forced bool)

// TaskRef identifies a registered periodic task for Stop/EnforceStart.
type TaskRef uint64

// Runner composes Planner-like timing with one worker goroutine per
// registered task, coordinated as a single ActiveObject.
type Runner interface {
	activeobject.ActiveObject

	// AddTask registers task to run every period. mode controls the
	// initial invocation:
	//   - RunImmediately:  task runs once synchronously before AddTask
	//     returns, then enters the periodic loop ("silent=false").
	//   - RunOnSchedule:    task is registered silently and fires for the
	//     first time after one period elapses ("silent=true").
	//   - SkipInitialRun:   the periodic loop starts but the first period
	//     is skipped once ("run=false"); subsequent periods fire normally.
	AddTask(period time.Duration, task Task, mode AddMode) TaskRef

	// StopTask stops and removes a single registered task.
	StopTask(ref TaskRef)

	// EnforceStart interrupts the task's sleep and runs it immediately
	// with forced=true, without altering the regular period.
	EnforceStart(ref TaskRef)

	// Tasks returns the number of currently registered tasks.
	Tasks() int
}

// AddMode selects the initial-invocation behavior of AddTask.
type AddMode int

const (
	// RunImmediately runs the task synchronously before AddTask returns.
	RunImmediately AddMode = iota
	// RunOnSchedule waits one full period before the first invocation.
	RunOnSchedule
	// SkipInitialRun starts the loop but skips exactly one period.
	SkipInitialRun
)

// Option configures a Runner at construction time.
type Option func(r *runner)

// WithCallback installs the activeobject.Callback used to report panics
// raised from within a Task.
func WithCallback(cb activeobject.Callback) Option {
	return func(r *runner) {
		if cb != nil {
			r.cb = cb
		}
	}
}

// WithParentContext sets the parent context.Context passed to every Task.
func WithParentContext(ctx context.Context) Option {
	return func(r *runner) {
		if ctx != nil {
			r.parent = ctx
		}
	}
}

// New builds a Runner. Worker goroutines for already-registered tasks
// start on Activate; tasks added after Activate start their own
// goroutine immediately.
func New(opts ...Option) Runner {
	r := &runner{
		cb:     noopCallback{},
		parent: context.Background(),
	}

	for _, fct := range opts {
		if fct != nil {
			fct(r)
		}
	}

	r.init()

	return r
}

type noopCallback struct{}

func (noopCallback) Info(_ string)     {}
func (noopCallback) Warning(_ string)  {}
func (noopCallback) Error(_ string)    {}
func (noopCallback) Critical(_ string) {}
