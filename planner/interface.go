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

// Package planner implements a timer-driven goal dispatcher: a single
// ActiveObject worker delivers (deadline, goal) pairs in deadline order
// off a time-ordered list. Grounded on Scheduler.cpp.
package planner

import (
	"context"
	"time"

	"github.com/nabbar/corerun/activeobject"
)

// Goal is the invocable delivered by the Planner at its deadline.
type Goal func(ctx context.Context)

// Planner schedules Goals for delivery at absolute times.
type Planner interface {
	activeobject.ActiveObject

	// Schedule inserts goal for delivery at deadline and returns a
	// reference usable with Unschedule.
	Schedule(deadline time.Time, goal Goal) GoalRef

	// Unschedule removes every pending message referencing ref. It does
	// not wait for, and cannot cancel, a goal already being dispatched.
	Unschedule(ref GoalRef)

	// Pending returns the number of messages not yet dispatched.
	Pending() int
}

// GoalRef identifies a scheduled Goal for later Unschedule calls.
type GoalRef uint64

// Option configures a Planner at construction time.
type Option func(p *planner)

// WithCallback installs the activeobject.Callback used to report panics
// raised from within a Goal.
func WithCallback(cb activeobject.Callback) Option {
	return func(p *planner) {
		if cb != nil {
			p.cb = cb
		}
	}
}

// WithParentContext sets the parent context.Context passed to every Goal.
func WithParentContext(ctx context.Context) Option {
	return func(p *planner) {
		if ctx != nil {
			p.parent = ctx
		}
	}
}

// WithDeliveryTimeAdjustment enables the delivery-shift compensation
// described by Scheduler.cpp: when the dispatcher oversleeps its target
// deadline by Δ, half of that drift is subtracted from future wait
// targets, smoothing out systematic scheduler latency.
func WithDeliveryTimeAdjustment(enabled bool) Option {
	return func(p *planner) {
		p.adjustDelivery = enabled
	}
}

// New builds a Planner. The dispatcher goroutine starts on Activate.
func New(opts ...Option) Planner {
	p := &planner{
		cb:     noopCallback{},
		parent: context.Background(),
	}

	for _, fct := range opts {
		if fct != nil {
			fct(p)
		}
	}

	p.init()

	return p
}

type noopCallback struct{}

func (noopCallback) Info(_ string)     {}
func (noopCallback) Warning(_ string)  {}
func (noopCallback) Error(_ string)    {}
func (noopCallback) Critical(_ string) {}
