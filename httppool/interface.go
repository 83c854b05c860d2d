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

// Package httppool implements an asynchronous HTTP client pool: a sharded
// reactor of EventThreads, each holding some number of keep-alive
// Connections grouped per Server, feeding Requests queued by the
// application through a pluggable Policy. Grounded on
// HttpAsyncPoolInternals.hpp / HttpAsyncPool.cpp.
package httppool

import (
	"context"
	"net/http"

	"github.com/nabbar/corerun/activeobject"
	liberr "github.com/nabbar/corerun/errors"
	"github.com/nabbar/corerun/taskrunner"
)

// Pool is the application-facing HttpAsyncPool: an ActiveObject that
// accepts GET/POST requests and delivers their outcome through a
// ResponseCallback, entirely off the caller's goroutine.
type Pool interface {
	activeobject.ActiveObject

	// AddGetRequest queues a GET request to uri. peer selects (or creates)
	// the Server aggregate; None derives it from uri's host:port.
	AddGetRequest(uri string, cb ResponseCallback, peer ServerID, header http.Header) (*Request, liberr.Error)

	// AddPostRequest queues a POST request to uri carrying body.
	AddPostRequest(uri string, cb ResponseCallback, body []byte, peer ServerID, header http.Header) (*Request, liberr.Error)

	// Wait blocks until Deactivate has fully torn down every Server,
	// Connection and EventThread AND every Request constructed before the
	// call has had its callback invoked.
	Wait() liberr.Error
}

// Option configures a Pool at construction time.
type Option func(p *pool)

// WithPolicy installs the Policy governing connection/thread reuse,
// teardown timing, resend behavior and diagnostics. Defaults to a
// BasePolicy zero value (always create new, resend the backlog of every
// closed connection, silent).
func WithPolicy(policy Policy) Option {
	return func(p *pool) {
		if policy != nil {
			p.policy = policy
		}
	}
}

// WithCallback installs the activeobject.Callback used by the pool's
// owned Planner and, when it builds its own, TaskRunner.
func WithCallback(cb activeobject.Callback) Option {
	return func(p *pool) {
		if cb != nil {
			p.cb = cb
		}
	}
}

// WithTaskRunner installs an externally owned taskrunner.Runner used to
// dispatch ResponseCallback invocations. When omitted, Activate builds and
// owns one (16 max workers, 4 started, unbounded queue), activated and
// deactivated alongside the pool itself.
func WithTaskRunner(r taskrunner.Runner) Option {
	return func(p *pool) {
		if r != nil {
			p.taskRunner = r
			p.ownsTaskRunner = false
		}
	}
}

// WithParentContext sets the parent context.Context observed by every
// Connection's pump goroutine and by the owned TaskRunner/Planner.
func WithParentContext(ctx context.Context) Option {
	return func(p *pool) {
		if ctx != nil {
			p.parent = ctx
		}
	}
}

// New builds a Pool in the NotActive state. Call Activate before routing
// any request to it.
func New(opts ...Option) (Pool, liberr.Error) {
	p := &pool{
		policy: BasePolicy{},
		cb:     noopCallback{},
		parent: context.Background(),
	}

	for _, fct := range opts {
		if fct != nil {
			fct(p)
		}
	}

	p.init()

	return p, nil
}

type noopCallback struct{}

func (noopCallback) Info(_ string)     {}
func (noopCallback) Warning(_ string)  {}
func (noopCallback) Error(_ string)    {}
func (noopCallback) Critical(_ string) {}
