/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
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

package startStop

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type runner struct {
	start StartFunc
	stop  StopFunc

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	startedAt time.Time
	done      chan struct{}
	stopOnce  *sync.Once

	errMu sync.Mutex
	errs  []error
}

// Start stops any instance currently running, clears the error history,
// and launches a fresh one.
func (o *runner) Start(ctx context.Context) error {
	o.stopCurrent(ctx)

	o.errMu.Lock()
	o.errs = nil
	o.errMu.Unlock()

	cctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.cancel = cancel
	o.startedAt = time.Now()
	o.running = true
	done := make(chan struct{})
	o.done = done
	o.stopOnce = &sync.Once{}
	o.mu.Unlock()

	go o.runStart(cctx, done)

	return nil
}

func (o *runner) runStart(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer o.markStopped()
	defer func() {
		if rec := recover(); rec != nil {
			o.reportError(fmt.Errorf("startStop: start panic: %v", rec))
		}
	}()

	if o.start == nil {
		o.reportError(fmt.Errorf("invalid start function"))
		return
	}

	if err := o.start(ctx); err != nil {
		o.reportError(err)
	}
}

func (o *runner) markStopped() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

// Stop asks the running instance, if any, to return and invokes the
// configured stop function exactly once for that instance.
func (o *runner) Stop(ctx context.Context) error {
	o.stopCurrent(ctx)
	return nil
}

func (o *runner) stopCurrent(ctx context.Context) {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	done := o.done
	once := o.stopOnce
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if once != nil {
		once.Do(func() {
			o.callStop(ctx)
		})
	}
}

func (o *runner) callStop(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			o.reportError(fmt.Errorf("startStop: stop panic: %v", rec))
		}
	}()

	if o.stop == nil {
		o.reportError(fmt.Errorf("invalid stop function"))
		return
	}

	if err := o.stop(ctx); err != nil {
		o.reportError(err)
	}
}

// Restart always stops the current instance, if any, before launching a
// new one, so it behaves identically to Start when nothing is running.
func (o *runner) Restart(ctx context.Context) error {
	return o.Start(ctx)
}

func (o *runner) IsRunning() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

func (o *runner) Uptime() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.running {
		return 0
	}
	return time.Since(o.startedAt)
}

func (o *runner) reportError(err error) {
	if err == nil {
		return
	}
	o.errMu.Lock()
	o.errs = append(o.errs, err)
	o.errMu.Unlock()
}

func (o *runner) ErrorsLast() error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	if len(o.errs) == 0 {
		return nil
	}
	return o.errs[len(o.errs)-1]
}

func (o *runner) ErrorsList() []error {
	o.errMu.Lock()
	defer o.errMu.Unlock()
	out := make([]error, len(o.errs))
	copy(out, o.errs)
	return out
}
