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

// Package startStop wraps a single start/stop function pair into a small
// runnable with uptime tracking and error history, the lightest-weight of
// the lifecycle wrappers built atop the activeobject protocol.
package startStop

import (
	"context"
	"time"
)

// StartFunc is launched in its own goroutine by Start. It should block
// until ctx is done, returning the reason it stopped.
type StartFunc func(ctx context.Context) error

// StopFunc is called by Stop (or by Start when replacing a running
// instance) to ask the active StartFunc to return.
type StopFunc func(ctx context.Context) error

// StartStop runs a single StartFunc/StopFunc pair and tracks its uptime
// and error history.
type StartStop interface {
	// Start launches the start function in a new goroutine. If the
	// runner is already running, the previous instance is stopped first.
	Start(ctx context.Context) error

	// Stop asks the running start function to return and waits for it.
	// It is a no-op if the runner is not running.
	Stop(ctx context.Context) error

	// Restart stops the current instance, if any, and starts a new one.
	Restart(ctx context.Context) error

	// IsRunning reports whether the start function is currently active.
	IsRunning() bool

	// Uptime returns the duration since the current run started, or zero
	// if the runner is not running.
	Uptime() time.Duration

	// ErrorsLast returns the most recent error reported by the start or
	// stop functions, or nil if none occurred since the last Start.
	ErrorsLast() error

	// ErrorsList returns every error reported since the last Start.
	ErrorsList() []error
}

// New returns a StartStop running start and stop. Either may be nil; a
// nil function reports an "invalid ... function" error when invoked
// instead of panicking.
func New(start StartFunc, stop StopFunc) StartStop {
	o := &runner{
		start: start,
		stop:  stop,
	}

	return o
}
