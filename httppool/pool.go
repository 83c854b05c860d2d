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
	"net/http"
	"net/url"
	"sync"

	"github.com/nabbar/corerun/activeobject"
	libatm "github.com/nabbar/corerun/atomic"
	libctx "github.com/nabbar/corerun/context"
	liberr "github.com/nabbar/corerun/errors"
	"github.com/nabbar/corerun/planner"
	"github.com/nabbar/corerun/taskrunner"
)

type pool struct {
	policy Policy
	cb     activeobject.Callback

	taskRunner     taskrunner.Runner
	ownsTaskRunner bool
	planner        planner.Planner
	eventThreads   *eventThreadPool

	mu      sync.Mutex
	servers libctx.Config[ServerID]

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc

	state          libatm.Value[activeobject.State]
	shutdownDone   chan struct{}
	deactivateOnce sync.Once
	informerWG     sync.WaitGroup
}


func (p *pool) init() {
	p.servers = libctx.New[ServerID](context.Background())
	p.state = libatm.NewValue[activeobject.State]()
	p.state.Store(activeobject.NotActive)
}

func (p *pool) runCtx() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx
}

func (p *pool) Activate() liberr.Error {
	p.mu.Lock()
	if p.state.Load() != activeobject.NotActive {
		p.mu.Unlock()
		return ErrorAlreadyActive.Error()
	}

	ctx, cancel := context.WithCancel(p.parent)
	p.ctx = ctx
	p.cancel = cancel
	p.shutdownDone = make(chan struct{})
	p.deactivateOnce = sync.Once{}
	p.state.Store(activeobject.Active)
	p.mu.Unlock()

	if p.taskRunner == nil {
		tr, err := taskrunner.New(16, 4, 0, taskrunner.WithCallback(p.cb), taskrunner.WithParentContext(ctx))
		if err != nil {
			p.state.Store(activeobject.NotActive)
			return err
		}
		p.taskRunner = tr
		p.ownsTaskRunner = true
	}
	if aerr := p.taskRunner.Activate(); aerr != nil && p.ownsTaskRunner {
		p.state.Store(activeobject.NotActive)
		return aerr
	}

	p.planner = planner.New(
		planner.WithCallback(p.cb),
		planner.WithParentContext(ctx),
		planner.WithDeliveryTimeAdjustment(true),
	)
	if aerr := p.planner.Activate(); aerr != nil {
		p.state.Store(activeobject.NotActive)
		return aerr
	}

	p.eventThreads = newEventThreadPool(p.policy, p.cb, p.taskRunner, p.planner)

	return nil
}

func (p *pool) Deactivate() liberr.Error {
	p.mu.Lock()
	if p.state.Load() != activeobject.Active {
		p.mu.Unlock()
		return nil
	}
	p.state.Store(activeobject.Deactivating)
	p.mu.Unlock()

	p.deactivateOnce.Do(func() {
		go p.teardown()
	})

	return nil
}

// teardown is HttpAsyncPool::deactivate's async body: drain every Server
// (which drains its Connections), then the EventThreadPool, then the
// owned TaskRunner and Planner, in that order.
func (p *pool) teardown() {
	defer close(p.shutdownDone)

	srvs := make([]*server, 0)
	p.servers.Walk(func(_ ServerID, val interface{}) bool {
		if s, ok := val.(*server); ok {
			srvs = append(srvs, s)
		}
		return true
	})

	var wg sync.WaitGroup
	wg.Add(len(srvs))
	for _, s := range srvs {
		s := s
		go func() {
			defer wg.Done()
			s.Deactivate(p.ctx)
		}()
	}
	wg.Wait()

	if p.eventThreads != nil {
		p.eventThreads.Deactivate()
	}

	if p.planner != nil {
		_ = p.planner.Deactivate()
		_ = p.planner.Wait()
	}

	if p.ownsTaskRunner && p.taskRunner != nil {
		_ = p.taskRunner.Deactivate()
		_ = p.taskRunner.Wait()
	}

	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the pool has fully torn down AND every Request's
// Informer has been released, i.e. no callback is still pending or in
// flight.
func (p *pool) Wait() liberr.Error {
	if p.state.Load() == activeobject.NotActive {
		return nil
	}

	<-p.shutdownDone
	p.informerWG.Wait()

	p.mu.Lock()
	if p.state.Load() == activeobject.Deactivating {
		p.state.Store(activeobject.NotActive)
	}
	p.mu.Unlock()

	return nil
}

func (p *pool) Active() bool {
	return p.state.Load() == activeobject.Active
}

func (p *pool) State() activeobject.State {
	return p.state.Load()
}

func (p *pool) AddGetRequest(uri string, cb ResponseCallback, peer ServerID, header http.Header) (*Request, liberr.Error) {
	return p.add(MethodGet, uri, cb, nil, peer, header)
}

func (p *pool) AddPostRequest(uri string, cb ResponseCallback, body []byte, peer ServerID, header http.Header) (*Request, liberr.Error) {
	return p.add(MethodPost, uri, cb, body, peer, header)
}

func (p *pool) add(method Method, uri string, cb ResponseCallback, body []byte, peer ServerID, header http.Header) (*Request, liberr.Error) {
	if p.state.Load() != activeobject.Active {
		return nil, ErrorNotActive.Error()
	}

	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return nil, ErrorInvalidAddress.Error(err)
	}

	if peer == None {
		peer = ServerID(u.Host)
	}
	if header == nil {
		header = make(http.Header)
	}

	p.informerWG.Add(1)
	req := newRequest(method, u, header, body, peer, cb, p.informerWG.Done)

	if p.policy != nil {
		p.policy.RequestConstructing(req)
	}

	srv := p.findOrCreateServer(peer)
	if aerr := srv.AddRequest(req); aerr != nil {
		p.failAsync(req, aerr.Error(), ResponseInfo{URL: u})
		return req, aerr
	}

	return req, nil
}

// findOrCreateServer returns the existing server for id, or constructs and
// registers a new one. ServerAdded fires exactly once per id: only the
// goroutine that actually wins the LoadOrStore race notifies the policy,
// so a second request to an already-known host never re-fires it.
func (p *pool) findOrCreateServer(id ServerID) *server {
	if val, ok := p.servers.Load(id); ok {
		return val.(*server)
	}

	s := newServer(id, p)
	val, loaded := p.servers.LoadOrStore(id, s)
	won := val.(*server)
	if !loaded {
		if p.policy != nil {
			p.policy.ServerAdded(id)
		}
	}
	return won
}

// removeServer drops id from the registry once its server has fully
// drained.
func (p *pool) removeServer(id ServerID) {
	p.servers.Delete(id)
}

// deliverAsync hands a successful outcome to the pool's TaskRunner so
// ResponseCallback.OnResponse runs off the connection's own pump
// goroutine. Falls back to the synchronous QuickOnResponse path if the
// TaskRunner itself cannot accept the task.
func (p *pool) deliverAsync(req *Request, info ResponseInfo) {
	if p.taskRunner != nil {
		task := taskrunner.TaskFunc(func(context.Context) { req.Deliver(info) })
		if err := p.taskRunner.Enqueue(task, 0); err == nil {
			return
		}
	}
	req.QuickDeliver(info)
}

// failAsync is deliverAsync's error-path counterpart.
func (p *pool) failAsync(req *Request, description string, info ResponseInfo) {
	if p.taskRunner != nil {
		task := taskrunner.TaskFunc(func(context.Context) { req.Fail(description, info) })
		if err := p.taskRunner.Enqueue(task, 0); err == nil {
			return
		}
	}
	req.QuickFail(description, info)
}
