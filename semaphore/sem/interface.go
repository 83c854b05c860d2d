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

// Package sem provides a weighted-or-unlimited semaphore that also behaves
// as a context.Context, so every worker spawned against it can select on
// its own Done channel. A non-positive limit degrades to an unlimited
// sync.WaitGroup-backed semaphore; golang.org/x/sync/semaphore.Weighted
// backs every bounded case.
package sem

import (
	"context"
	"runtime"
	"time"
)

// Semaphore bounds (or, with a negative limit, merely tracks) concurrent
// workers. It embeds context.Context: Done/Err reflect both the parent
// context passed to New and DeferMain's own cancellation.
type Semaphore interface {
	context.Context

	// Weighted returns the configured concurrency limit, or -1 if unlimited.
	Weighted() int64

	// NewWorker blocks until a worker slot is available or the context
	// is done, in which case it returns the context's error.
	NewWorker() error
	// NewWorkerTry acquires a worker slot without blocking.
	NewWorkerTry() bool
	// NewWorkerTimeout blocks until a worker slot is available or d
	// elapses, in which case it returns context.DeadlineExceeded. d <= 0
	// behaves like NewWorker.
	NewWorkerTimeout(d time.Duration) error
	// DeferWorker releases a worker slot acquired by NewWorker/NewWorkerTry.
	DeferWorker()

	// WaitAll blocks until every currently acquired worker slot has been
	// released, or the context is done.
	WaitAll() error

	// New derives a fresh, independent Semaphore with the same limit,
	// whose context is a child of this one.
	New() Semaphore

	// DeferMain cancels this Semaphore's own context. Safe to call more
	// than once.
	DeferMain()
}

// MaxSimultaneous returns the default concurrency limit (GOMAXPROCS).
func MaxSimultaneous() int {
	return runtime.GOMAXPROCS(0)
}

// SetSimultaneous clamps n to [1, MaxSimultaneous()].
func SetSimultaneous(n int64) int64 {
	max := int64(MaxSimultaneous())
	if n < 1 {
		return max
	}
	if n > max {
		return max
	}
	return n
}

// New builds a Semaphore bound to ctx. nbrSimultaneous == 0 uses
// MaxSimultaneous(); > 0 uses that exact limit; < 0 builds an unlimited,
// WaitGroup-backed Semaphore.
func New(ctx context.Context, nbrSimultaneous int) Semaphore {
	if ctx == nil {
		ctx = context.Background()
	}

	return newSemaphore(ctx, int64(nbrSimultaneous))
}
