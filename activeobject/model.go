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

package activeobject

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	libatm "github.com/nabbar/corerun/atomic"
	liberr "github.com/nabbar/corerun/errors"
)

// Object is the default ActiveObject implementation: a SingleJob run by a
// fixed-size pool of worker goroutines, coordinated by a work mutex and a
// WaitGroup. Grounded on Generics::ActiveObjectCommonImpl.
type Object struct {
	job     SingleJob
	threads uint32

	startThreads   uint32
	cb             Callback
	parent         context.Context
	finalizerGrace time.Duration

	mu     sync.Mutex
	state  libatm.Value[State]
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func (o *Object) init() {
	o.state = libatm.NewValue[State]()
	o.state.Store(NotActive)

	if o.finalizerGrace > 0 {
		runtime.SetFinalizer(o, finalize)
	}
}

// finalize reports a forgotten Deactivate+Wait the way
// ActiveObjectCommonImpl's destructor warns instead of panicking.
func finalize(o *Object) {
	if o.state.Load() != NotActive {
		o.cb.Warning(fmt.Sprintf("activeobject: garbage collected while %s; caller never called Deactivate+Wait", o.state.Load()))
	}
}

// Activate transitions NotActive -> Active and starts startThreads worker
// goroutines running job.Work. Fails with AlreadyActive otherwise.
func (o *Object) Activate() liberr.Error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Load() != NotActive {
		return ErrorAlreadyActive.Error()
	}

	ctx, cancel := context.WithCancel(o.parent)
	o.cancel = cancel
	o.state.Store(Active)

	o.wg.Add(int(o.startThreads))
	for i := uint32(0); i < o.startThreads; i++ {
		go o.runWorker(ctx)
	}

	return nil
}

func (o *Object) runWorker(ctx context.Context) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			o.cb.Error(fmt.Sprintf("activeobject: worker panic: %v", r))
		}
	}()

	o.job.Work(ctx)
}

// Deactivate transitions Active -> Deactivating and calls job.Terminate;
// it never blocks on worker completion. Idempotent in any other state.
func (o *Object) Deactivate() liberr.Error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Load() != Active {
		return nil
	}

	o.state.Store(Deactivating)
	o.job.Terminate()
	if o.cancel != nil {
		o.cancel()
	}

	return nil
}

// Wait blocks until every worker goroutine has returned from Work, then
// transitions Deactivating -> NotActive. Safe to call from any goroutine;
// concurrent waiters all return once the object is quiescent.
func (o *Object) Wait() liberr.Error {
	if o.state.Load() == NotActive {
		return nil
	}

	o.wg.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Load() == Deactivating {
		o.state.Store(NotActive)
	}

	return nil
}

// Active reports whether the object is currently Active. Non-blocking.
func (o *Object) Active() bool {
	return o.state.Load() == Active
}

// State returns the current lifecycle state.
func (o *Object) State() State {
	return o.state.Load()
}
