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

package httppool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/corerun/activeobject"
	"github.com/nabbar/corerun/planner"
	"github.com/nabbar/corerun/reactor"
	"github.com/nabbar/corerun/taskrunner"
)

// eventThread owns one reactor and the goroutines that run its dispatch
// loop; it is the Go stand-in for "one OS thread owning one reactor base".
// Connections are attached to it via their own SignalQueue, registered
// against its reactor.
type eventThread struct {
	id      ThreadID
	reactor reactor.Reactor

	mu        sync.Mutex
	conns     map[ConnID]struct{}
	haveTimer bool
	closeRef  planner.GoalRef
}

func newEventThread(id ThreadID, cb activeobject.Callback) (*eventThread, error) {
	r, err := reactor.New(reactor.WithCallback(cb))
	if err != nil {
		return nil, err
	}
	if aerr := r.Activate(); aerr != nil {
		return nil, aerr
	}
	return &eventThread{id: id, reactor: r, conns: make(map[ConnID]struct{})}, nil
}

// trackConnection attaches id to t. A connection reattaching to a thread
// that is mid close-timer cancels that timer, the same way
// connection.cancelCloseTimerLocked protects a connection that picked up
// new work while its own close timer was pending.
func (t *eventThread) trackConnection(id ConnID, pl planner.Planner) {
	t.mu.Lock()
	t.conns[id] = struct{}{}
	if t.haveTimer && pl != nil {
		pl.Unschedule(t.closeRef)
		t.haveTimer = false
	}
	t.mu.Unlock()
}

func (t *eventThread) untrackConnection(id ConnID) (emptied bool) {
	t.mu.Lock()
	delete(t.conns, id)
	emptied = len(t.conns) == 0
	t.mu.Unlock()
	return emptied
}

func (t *eventThread) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns) == 0
}

func (t *eventThread) shutdown() {
	_ = t.reactor.Deactivate()
	_ = t.reactor.Wait()
}

// eventThreadPool maintains the active/deactivating split: threads still
// eligible for ChooseThread live in active; threads being drained after
// their last Connection closed live in deactivating until a TaskRunner
// task joins and disposes them.
type eventThreadPool struct {
	policy  Policy
	cb      activeobject.Callback
	joiner  taskrunner.Runner
	planner planner.Planner

	mu           sync.Mutex
	active       map[ThreadID]*eventThread
	deactivating map[ThreadID]*eventThread
	nextID       atomic.Uint64
}

func newEventThreadPool(policy Policy, cb activeobject.Callback, joiner taskrunner.Runner, pl planner.Planner) *eventThreadPool {
	return &eventThreadPool{
		policy:       policy,
		cb:           cb,
		joiner:       joiner,
		planner:      pl,
		active:       make(map[ThreadID]*eventThread),
		deactivating: make(map[ThreadID]*eventThread),
	}
}

// choose implements EventThreadPool::choose_thread: ask the policy for an
// existing active thread, falling back to a freshly created one.
func (p *eventThreadPool) choose(policy Policy) *eventThread {
	p.mu.Lock()
	if policy != nil {
		if tid := policy.ChooseThread(); tid != None {
			if t, ok := p.active[tid]; ok {
				p.mu.Unlock()
				return t
			}
		}
	}
	p.mu.Unlock()

	id := ThreadID(fmt.Sprintf("evt-%d", p.nextID.Add(1)))
	t, err := newEventThread(id, p.cb)
	if err != nil {
		// Surface via the policy reporter; the caller still needs a
		// thread, so retry the same construction once rather than
		// panicking a request path.
		if policy != nil {
			policy.ReportError(SeverityCritical, "eventthread: "+err.Error(), 0)
		}
		t, _ = newEventThread(id, p.cb)
	}

	p.mu.Lock()
	p.active[id] = t
	p.mu.Unlock()

	if policy != nil {
		policy.ThreadAdded(id)
	}

	return t
}

// onConnectionClosed is called by the server/connection teardown path once
// a Connection finishes, so the owning thread can ask whether it should
// retire now that it may be empty.
func (p *eventThreadPool) onConnectionClosed(t *eventThread, id ConnID) {
	emptied := t.untrackConnection(id)
	if !emptied || p.policy == nil {
		return
	}

	p.checkThreadIdle(t)
}

// checkThreadIdle asks policy.WhenCloseThread for t and acts on its
// three-way verdict the same way connection.onIdle treats
// WhenCloseConnection: negative keeps the thread open indefinitely, zero
// retires it now, positive arms a re-check via the planner after that
// duration rather than collapsing to "never close". A thread that
// picked up a new connection since the last check is left alone, the
// same guard connection.pump applies to its own wake-from-check path.
func (p *eventThreadPool) checkThreadIdle(t *eventThread) {
	if !t.idle() {
		return
	}

	d := p.policy.WhenCloseThread(t.id)
	switch {
	case d < 0:
		return
	case d == 0:
		p.retireThread(t)
	default:
		p.armCloseTimer(t, d)
	}
}

func (p *eventThreadPool) armCloseTimer(t *eventThread, d time.Duration) {
	if p.planner == nil {
		p.retireThread(t)
		return
	}

	t.mu.Lock()
	ref := p.planner.Schedule(time.Now().Add(d), func(context.Context) {
		p.mu.Lock()
		_, stillActive := p.active[t.id]
		p.mu.Unlock()

		t.mu.Lock()
		t.haveTimer = false
		t.mu.Unlock()

		if stillActive {
			p.checkThreadIdle(t)
		}
	})
	t.haveTimer = true
	t.closeRef = ref
	t.mu.Unlock()
}

func (p *eventThreadPool) retireThread(t *eventThread) {
	p.mu.Lock()
	if _, ok := p.active[t.id]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.active, t.id)
	p.deactivating[t.id] = t
	p.mu.Unlock()

	join := func() {
		t.shutdown()
		p.mu.Lock()
		delete(p.deactivating, t.id)
		p.mu.Unlock()
		p.policy.ThreadRemoved(t.id)
	}

	if p.joiner != nil {
		if err := p.joiner.Enqueue(taskrunner.TaskFunc(func(context.Context) { join() }), 0); err == nil {
			return
		}
	}
	join()
}

// Deactivate tears down every active and deactivating thread. Blocking:
// used only from the pool's own shutdown path, after every server has
// drained.
func (p *eventThreadPool) Deactivate() {
	p.mu.Lock()
	all := make([]*eventThread, 0, len(p.active)+len(p.deactivating))
	for _, t := range p.active {
		all = append(all, t)
	}
	for _, t := range p.deactivating {
		all = append(all, t)
	}
	p.active = make(map[ThreadID]*eventThread)
	p.deactivating = make(map[ThreadID]*eventThread)
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(all))
	for _, t := range all {
		t := t
		go func() {
			defer wg.Done()
			t.shutdown()
		}()
	}
	wg.Wait()
}
