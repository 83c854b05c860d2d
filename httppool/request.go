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
	"net/http"
	"net/url"
	"sync"
)

// ResponseInfo is the late-bound result of a Request: response code,
// headers and body on success. On failure the pool leaves Err nil and
// describes the failure in the description passed to OnError; the code is
// zero unless the response body could not be read.
type ResponseInfo struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
	Err        error
}

// ResponseCallback is the user interface notified of a Request's outcome.
// OnResponse/OnError are invoked from the owning HttpAsyncPool's
// TaskRunner, off the reactor thread. QuickOnResponse/QuickOnError are
// invoked synchronously from a reactor goroutine on the rare path where
// the TaskRunner enqueue itself fails (e.g. Overflow); implementations
// must return promptly and do no significant work.
type ResponseCallback interface {
	OnResponse(info ResponseInfo)
	OnError(description string, info ResponseInfo)
	QuickOnResponse(info ResponseInfo)
	QuickOnError(description string, info ResponseInfo)
}

// CallbackFunc adapts two plain functions to ResponseCallback, with
// QuickOnResponse/QuickOnError falling back to the same functions.
type CallbackFunc struct {
	Response func(info ResponseInfo)
	Error    func(description string, info ResponseInfo)
}

func (f CallbackFunc) OnResponse(info ResponseInfo)                 { f.Response(info) }
func (f CallbackFunc) OnError(description string, info ResponseInfo) { f.Error(description, info) }
func (f CallbackFunc) QuickOnResponse(info ResponseInfo)             { f.Response(info) }
func (f CallbackFunc) QuickOnError(description string, info ResponseInfo) {
	f.Error(description, info)
}

// informer is the reference-counted drain token attached to every live
// Request, grounded on HttpAsyncPoolInternals.hpp's Informer. Exactly one
// of release's callers (Deliver, Fail, QuickDeliver, QuickFail) ever fires
// for a given Request.
type informer struct {
	once sync.Once
	done func()
}

func (i *informer) release() {
	i.once.Do(i.done)
}

// Method is the HTTP verb a Request carries. Only GET and POST are built
// by the pool façade; Connection treats it as an opaque
// wire method otherwise.
type Method string

const (
	MethodGet  Method = http.MethodGet
	MethodPost Method = http.MethodPost
)

// Request is immutable after construction except for its late-bound
// response fields, which Connection sets exactly once before handing it
// to ResponseCallback.
type Request struct {
	Method  Method
	URL     *url.URL
	Header  http.Header
	Body    []byte
	Peer    ServerID
	Conn    ConnID
	Callback ResponseCallback

	inf *informer

	mu       sync.Mutex
	resolved bool
	result   ResponseInfo
}

// newRequest builds a Request bound to cb, releasing done exactly once
// when a terminal outcome is delivered.
func newRequest(method Method, u *url.URL, header http.Header, body []byte, peer ServerID, cb ResponseCallback, done func()) *Request {
	return &Request{
		Method:   method,
		URL:      u,
		Header:   header,
		Body:     body,
		Peer:     peer,
		Callback: cb,
		inf:      &informer{done: done},
	}
}

// Deliver sets the successful result and invokes the callback. Safe to
// call at most meaningfully once; subsequent calls are no-ops.
func (r *Request) Deliver(info ResponseInfo) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return
	}
	r.resolved = true
	r.result = info
	r.mu.Unlock()

	if r.Callback != nil {
		r.Callback.OnResponse(info)
	}
	r.inf.release()
}

// Fail sets the error result and invokes the callback. Safe to call at
// most meaningfully once; subsequent calls are no-ops.
func (r *Request) Fail(description string, info ResponseInfo) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return
	}
	r.resolved = true
	r.result = info
	r.mu.Unlock()

	if r.Callback != nil {
		r.Callback.OnError(description, info)
	}
	r.inf.release()
}

// QuickDeliver is Deliver's fallback counterpart, used when the
// TaskRunner itself could not accept the delivery task.
func (r *Request) QuickDeliver(info ResponseInfo) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return
	}
	r.resolved = true
	r.result = info
	r.mu.Unlock()

	if r.Callback != nil {
		r.Callback.QuickOnResponse(info)
	}
	r.inf.release()
}

// QuickFail is Fail's synchronous counterpart, used when the TaskRunner
// itself could not accept the delivery task.
func (r *Request) QuickFail(description string, info ResponseInfo) {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return
	}
	r.resolved = true
	r.result = info
	r.mu.Unlock()

	if r.Callback != nil {
		r.Callback.QuickOnError(description, info)
	}
	r.inf.release()
}

// Resolved reports whether Deliver/Fail/QuickFail has already run.
func (r *Request) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}
