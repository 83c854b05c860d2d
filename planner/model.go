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

package planner

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/corerun/activeobject"
	libatm "github.com/nabbar/corerun/atomic"
	liberr "github.com/nabbar/corerun/errors"
)

type message struct {
	deadline time.Time
	goal     Goal
	ref      GoalRef
}

type planner struct {
	cb     activeobject.Callback
	parent context.Context

	adjustDelivery bool
	deliveryShift  time.Duration

	mu          sync.Mutex
	messages    []*message
	terminating bool
	nextRef     uint64

	wakeCh chan struct{}

	state  libatm.Value[activeobject.State]
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func (p *planner) init() {
	p.state = libatm.NewValue[activeobject.State]()
	p.state.Store(activeobject.NotActive)
	p.wakeCh = make(chan struct{}, 1)
}

func (p *planner) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

func (p *planner) Activate() liberr.Error {
	p.mu.Lock()
	if p.state.Load() != activeobject.NotActive {
		p.mu.Unlock()
		return ErrorAlreadyActive.Error()
	}

	ctx, cancel := context.WithCancel(p.parent)
	p.ctx = ctx
	p.cancel = cancel
	p.terminating = false
	p.state.Store(activeobject.Active)
	p.mu.Unlock()

	p.wg.Add(1)
	go p.dispatch(ctx)

	return nil
}

func (p *planner) Deactivate() liberr.Error {
	p.mu.Lock()
	if p.state.Load() != activeobject.Active {
		p.mu.Unlock()
		return nil
	}

	p.state.Store(activeobject.Deactivating)
	p.terminating = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	p.wake()

	return nil
}

func (p *planner) Wait() liberr.Error {
	if p.state.Load() == activeobject.NotActive {
		return nil
	}

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Load() == activeobject.Deactivating {
		p.state.Store(activeobject.NotActive)
	}

	return nil
}

func (p *planner) Active() bool {
	return p.state.Load() == activeobject.Active
}

func (p *planner) State() activeobject.State {
	return p.state.Load()
}

func (p *planner) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// Schedule inserts goal in deadline order, scanning from the tail
// backward. Grounded on Scheduler::schedule.
func (p *planner) Schedule(deadline time.Time, goal Goal) GoalRef {
	ref := GoalRef(atomic.AddUint64(&p.nextRef, 1))
	m := &message{deadline: deadline, goal: goal, ref: ref}

	p.mu.Lock()
	i := len(p.messages)
	for i > 0 && p.messages[i-1].deadline.After(deadline) {
		i--
	}
	p.messages = append(p.messages, nil)
	copy(p.messages[i+1:], p.messages[i:])
	p.messages[i] = m
	p.mu.Unlock()

	p.wake()

	return ref
}

// Unschedule drops every message referencing ref. It never reaches into
// an already-dispatched goal.
func (p *planner) Unschedule(ref GoalRef) {
	p.mu.Lock()
	kept := p.messages[:0]
	for _, m := range p.messages {
		if m.ref != ref {
			kept = append(kept, m)
		}
	}
	p.messages = kept
	p.mu.Unlock()
}

// dispatch is the single Planner worker: pump overdue messages, wait on
// the next deadline or a wake signal, deliver FIFO.
func (p *planner) dispatch(ctx context.Context) {
	defer p.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		p.mu.Lock()
		now := time.Now()
		var pending []*message
		i := 0
		for i < len(p.messages) && !p.messages[i].deadline.After(now) {
			pending = append(pending, p.messages[i])
			i++
		}
		p.messages = p.messages[i:]
		term := p.terminating
		var nextDeadline time.Time
		hasNext := len(p.messages) > 0
		if hasNext {
			nextDeadline = p.messages[0].deadline
		}
		p.mu.Unlock()

		for _, m := range pending {
			p.invoke(ctx, m.goal)
		}

		if term {
			return
		}

		if len(pending) > 0 {
			continue
		}

		target := nextDeadline
		if p.adjustDelivery && hasNext {
			target = target.Add(-p.deliveryShift)
		}

		var waitDur time.Duration
		if hasNext {
			waitDur = time.Until(target)
			if waitDur < 0 {
				waitDur = 0
			}
			timer.Reset(waitDur)
		}

		if hasNext {
			select {
			case <-timer.C:
				if p.adjustDelivery {
					shift := time.Since(nextDeadline)
					if shift > 0 {
						p.mu.Lock()
						p.deliveryShift = shift / 2
						p.mu.Unlock()
					}
				}
			case <-p.wakeCh:
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			case <-ctx.Done():
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
		} else {
			select {
			case <-p.wakeCh:
			case <-ctx.Done():
			}
		}
	}
}

func (p *planner) invoke(ctx context.Context, goal Goal) {
	defer func() {
		if rec := recover(); rec != nil {
			p.cb.Error(fmt.Sprintf("planner: goal panic: %v", rec))
		}
	}()

	goal(ctx)
}
