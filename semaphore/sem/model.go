/*
 * MIT License
 *
 * Copyright (c) 2019 Nicolas JUHEL
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

package sem

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

type smp struct {
	context.Context
	cancel context.CancelFunc

	weight   int64 // -1 means unlimited
	weighted *semaphore.Weighted

	wmu sync.Mutex
	wg  *sync.WaitGroup
}

func newSemaphore(parent context.Context, n int64) *smp {
	ctx, cancel := context.WithCancel(parent)

	s := &smp{
		Context: ctx,
		cancel:  cancel,
	}

	if n < 0 {
		s.weight = -1
		s.wg = &sync.WaitGroup{}
	} else if n == 0 {
		s.weight = int64(MaxSimultaneous())
		s.weighted = semaphore.NewWeighted(s.weight)
	} else {
		s.weight = n
		s.weighted = semaphore.NewWeighted(s.weight)
	}

	return s
}

func (s *smp) Weighted() int64 {
	return s.weight
}

func (s *smp) NewWorker() error {
	if s.weighted != nil {
		return s.weighted.Acquire(s.Context, 1)
	}

	s.wmu.Lock()
	s.wg.Add(1)
	s.wmu.Unlock()

	return nil
}

func (s *smp) NewWorkerTry() bool {
	if s.weighted != nil {
		return s.weighted.TryAcquire(1)
	}

	s.wmu.Lock()
	s.wg.Add(1)
	s.wmu.Unlock()

	return true
}

func (s *smp) NewWorkerTimeout(d time.Duration) error {
	if d <= 0 {
		return s.NewWorker()
	}

	ctx, cancel := context.WithTimeout(s.Context, d)
	defer cancel()

	if s.weighted != nil {
		return s.weighted.Acquire(ctx, 1)
	}

	s.wmu.Lock()
	s.wg.Add(1)
	s.wmu.Unlock()

	return nil
}

func (s *smp) DeferWorker() {
	if s.weighted != nil {
		s.weighted.Release(1)
		return
	}

	s.wmu.Lock()
	s.wg.Done()
	s.wmu.Unlock()
}

func (s *smp) WaitAll() error {
	if s.weighted != nil {
		if err := s.weighted.Acquire(s.Context, s.weight); err != nil {
			return err
		}
		s.weighted.Release(s.weight)
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.wmu.Lock()
		wg := s.wg
		s.wmu.Unlock()
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-s.Context.Done():
		return s.Context.Err()
	}
}

func (s *smp) New() Semaphore {
	return newSemaphore(s.Context, s.weight)
}

func (s *smp) DeferMain() {
	s.cancel()
}
