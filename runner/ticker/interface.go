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

// Package ticker runs a function on a fixed interval, the sibling of
// startStop for interval-driven rather than blocking workloads.
package ticker

import (
	"context"
	"time"
)

// defaultDuration is used whenever the caller-provided interval is too
// small to be a sane tick period.
const defaultDuration = 30 * time.Second

// minDuration is the smallest interval accepted as-is.
const minDuration = time.Millisecond

// Func is invoked on every tick. The *time.Ticker it receives is the one
// driving its own schedule, exposed in case the call wants to read its
// channel or, in a future revision, reset it.
type Func func(ctx context.Context, tck *time.Ticker) error

// Ticker runs Func on a fixed interval until stopped.
type Ticker interface {
	// Start launches the ticking loop in a new goroutine. If the ticker
	// is already running, the previous instance is stopped first. The
	// error history is cleared. A nil ctx is rejected.
	Start(ctx context.Context) error

	// Stop asks the running loop to return and waits for it. It is a
	// no-op if the ticker is not running.
	Stop(ctx context.Context) error

	// Restart stops the current instance, if any, and starts a new one.
	Restart(ctx context.Context) error

	// IsRunning reports whether the ticking loop is currently active.
	IsRunning() bool

	// Uptime returns the duration since the current run started, or zero
	// if the ticker is not running.
	Uptime() time.Duration

	// ErrorsLast returns the most recent error reported by Func, or nil
	// if none occurred since the last Start.
	ErrorsLast() error

	// ErrorsList returns every error reported since the last Start.
	ErrorsList() []error
}

// New returns a Ticker invoking fct every d. Durations below minDuration
// fall back to defaultDuration. fct may be nil; invoking it then reports
// an "invalid function" error on every tick instead of panicking.
func New(d time.Duration, fct Func) Ticker {
	if d < minDuration {
		d = defaultDuration
	}

	return &runner{
		fct: fct,
		dur: d,
	}
}
