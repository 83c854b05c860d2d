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

// Package activeobject implements the activate/deactivate/wait lifecycle
// protocol shared by every long-lived worker-pool subsystem in this module
// (TaskRunner, Planner, PeriodicRunner, the reactor, the HTTP pool).
//
// A SingleJob is run by every worker goroutine in the pool; Terminate is
// called once per Deactivate and must cause every blocked Work call to
// return in bounded time.
package activeobject

import (
	"context"
	"time"

	liberr "github.com/nabbar/corerun/errors"
)

// State is the three-value lifecycle of an ActiveObject.
type State int32

const (
	NotActive State = iota
	Active
	Deactivating
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Deactivating:
		return "deactivating"
	default:
		return "not-active"
	}
}

// SingleJob is run by every worker goroutine of a pool. Work must return
// when ctx is cancelled or after Terminate has otherwise unblocked it;
// Terminate is called exactly once per Deactivate and must not block.
type SingleJob interface {
	Work(ctx context.Context)
	Terminate()
}

// Callback receives severity-leveled reports for failures that occur
// inside worker goroutines; such failures never unwind past the worker.
type Callback interface {
	Info(msg string)
	Warning(msg string)
	Error(msg string)
	Critical(msg string)
}

// ActiveObject is the lifecycle contract every long-lived subsystem here
// implements: Activate (NotActive -> Active), Deactivate (Active ->
// Deactivating, never blocks), Wait (blocks until workers are quiescent,
// then Deactivating -> NotActive), Active (non-blocking snapshot).
type ActiveObject interface {
	Activate() liberr.Error
	Deactivate() liberr.Error
	Wait() liberr.Error
	Active() bool
	State() State
}

// Option configures an Object at construction time.
type Option func(o *Object)

// WithCallback installs the Callback used to report worker failures and
// teardown diagnostics. Defaults to a no-op callback.
func WithCallback(cb Callback) Option {
	return func(o *Object) {
		if cb != nil {
			o.cb = cb
		}
	}
}

// WithStartThreads sets how many of the pool's threadsNumber workers are
// spawned immediately by Activate; the rest may be grown cooperatively by
// the job itself (see taskrunner). Zero, or a value above threadsNumber,
// means threadsNumber.
func WithStartThreads(n uint32) Option {
	return func(o *Object) {
		o.startThreads = n
	}
}

// WithParentContext sets the parent context.Context for worker goroutines;
// cancelling it cancels the ctx passed to every Work call, but neither
// calls Terminate nor changes the lifecycle state. Defaults to
// context.Background().
func WithParentContext(ctx context.Context) Option {
	return func(o *Object) {
		if ctx != nil {
			o.parent = ctx
		}
	}
}

// WithFinalizerGrace enables the finalizer-driven teardown diagnostic,
// which reports through the Callback when an Object is garbage collected
// in a state other than NotActive. Any positive value enables it; zero
// disables it. The duration itself is not used as a delay.
func WithFinalizerGrace(d time.Duration) Option {
	return func(o *Object) {
		o.finalizerGrace = d
	}
}

// New builds an ActiveObject of threadsNumber worker goroutines running
// job.Work. A nil job or threadsNumber == 0 fails with ErrorParamEmpty.
func New(job SingleJob, threadsNumber uint32, opts ...Option) (*Object, liberr.Error) {
	if job == nil || threadsNumber == 0 {
		return nil, ErrorParamEmpty.Error()
	}

	o := &Object{
		job:            job,
		threads:        threadsNumber,
		startThreads:   threadsNumber,
		cb:             noopCallback{},
		parent:         context.Background(),
		finalizerGrace: 0,
	}

	for _, fct := range opts {
		if fct != nil {
			fct(o)
		}
	}

	if o.startThreads == 0 || o.startThreads > o.threads {
		o.startThreads = o.threads
	}

	o.init()

	return o, nil
}

type noopCallback struct{}

func (noopCallback) Info(_ string)     {}
func (noopCallback) Warning(_ string)  {}
func (noopCallback) Error(_ string)    {}
func (noopCallback) Critical(_ string) {}
