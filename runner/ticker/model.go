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

package ticker

import (
	"context"
	"fmt"
	"sync"
	"time"

	errpool "github.com/nabbar/corerun/errors/pool"
)

type runner struct {
	fct Func
	dur time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	startedAt time.Time
	done      chan struct{}

	errOnce sync.Once
	errs    errpool.Pool
}

func (o *runner) pool() errpool.Pool {
	o.errOnce.Do(func() {
		o.errs = errpool.New()
	})
	return o.errs
}

func (o *runner) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ticker: nil context")
	}

	o.stopCurrent()
	o.pool().Clear()

	cctx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.cancel = cancel
	o.startedAt = time.Now()
	o.running = true
	done := make(chan struct{})
	o.done = done
	o.mu.Unlock()

	go o.run(cctx, done)

	return nil
}

func (o *runner) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer o.markStopped()

	tck := time.NewTicker(o.dur)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tck.C:
			o.tick(ctx, tck)
		}
	}
}

func (o *runner) tick(ctx context.Context, tck *time.Ticker) {
	defer func() {
		if rec := recover(); rec != nil {
			o.pool().Add(fmt.Errorf("ticker: tick panic: %v", rec))
		}
	}()

	if o.fct == nil {
		o.pool().Add(fmt.Errorf("ticker: invalid function"))
		return
	}

	if err := o.fct(ctx, tck); err != nil {
		o.pool().Add(err)
	}
}

func (o *runner) markStopped() {
	o.mu.Lock()
	o.running = false
	o.mu.Unlock()
}

func (o *runner) Stop(ctx context.Context) error {
	o.stopCurrent()
	return nil
}

func (o *runner) stopCurrent() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	done := o.done
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
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

func (o *runner) ErrorsLast() error {
	return o.pool().Last()
}

func (o *runner) ErrorsList() []error {
	return o.pool().Slice()
}
