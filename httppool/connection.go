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
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/corerun/httpcli"
	"github.com/nabbar/corerun/planner"
	"github.com/nabbar/corerun/signalqueue"
)

// connection owns one keep-alive HTTP connection to a single host:port, on
// behalf of exactly one server and one eventThread. Grounded on
// HttpConnectionInternals.hpp / HttpConnection.cpp: request_fifo is a
// SignalQueue, at most one request is on the wire at a
// time, and an idle connection asks the policy when to close.
//
// The connection holds an owning pointer to nothing upstream: srv and
// thread are non-owning back-references obtained at registration time.
type connection struct {
	id     ConnID
	host   string
	srv    *server
	thread *eventThread
	pool   *pool
	policy Policy

	queue  signalqueue.Queue[*Request]
	client *http.Client

	mu         sync.Mutex
	backlog    []*Request
	wake       chan struct{}
	closeSig   chan struct{}
	closeOnce  sync.Once
	closeRef   planner.GoalRef
	haveTimer  bool
	terminated atomic.Bool

	inFlight atomic.Value // *Request, nil when idle

	doneCh chan struct{}
}

func newConnection(id ConnID, host string, p *pool, srv *server, th *eventThread) *connection {
	c := &connection{
		id:     id,
		host:   host,
		srv:    srv,
		thread: th,
		pool:   p,
		policy: p.policy,
		client: &http.Client{},
		wake:   make(chan struct{}, 1),
		closeSig: make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	c.inFlight.Store((*Request)(nil))

	c.queue = signalqueue.New[*Request](c.onData, c.onQuit, c.onCheck)

	return c
}

// attach registers the connection's SignalQueue against its EventThread's
// reactor and starts the pump goroutine. Must be called once, before any
// Enqueue.
func (c *connection) attach(ctx context.Context) {
	_ = c.queue.Attach(c.thread.reactor)
	go c.pump(ctx)
}

// Enqueue appends req to the connection's FIFO. Rejected once the
// connection has begun closing.
func (c *connection) Enqueue(req *Request) bool {
	if c.terminated.Load() {
		return false
	}
	req.Conn = c.id
	c.queue.Push(req)
	return true
}

// onData is the SignalQueue DataFunc: it must return quickly, so it only
// appends to the backlog and wakes the pump goroutine.
func (c *connection) onData(req *Request) {
	c.mu.Lock()
	c.backlog = append(c.backlog, req)
	c.cancelCloseTimerLocked()
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// onQuit is the SignalQueue QuitFunc, fired when a PushQuit notification
// is drained.
func (c *connection) onQuit() {
	c.closeOnce.Do(func() {
		close(c.closeSig)
	})
}

// onCheck is the SignalQueue CheckFunc, fired when a close timer expires
// to re-evaluate whether the connection is still idle.
func (c *connection) onCheck() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump is the connection's single worker goroutine: it is the only
// goroutine ever allowed to have a request in flight, which gives the
// at-most-one-request-on-the-wire invariant and per-connection FIFO
// delivery order for free.
func (c *connection) pump(ctx context.Context) {
	defer close(c.doneCh)

	for {
		c.mu.Lock()
		if len(c.backlog) == 0 {
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				c.drainOnClose("pool shutting down")
				return
			case <-c.closeSig:
				c.drainOnClose("connection closed")
				return
			case <-c.wake:
				c.mu.Lock()
				stillIdle := len(c.backlog) == 0
				c.mu.Unlock()
				if stillIdle {
					c.onIdle()
				}
				continue
			}
		}
		req := c.backlog[0]
		c.backlog = c.backlog[1:]
		idle := len(c.backlog) == 0
		c.mu.Unlock()

		c.inFlight.Store(req)
		info, failDesc := c.do(ctx, req)
		c.inFlight.Store((*Request)(nil))

		if c.policy != nil {
			c.policy.ConnectionRequestRemoved(c.id)
		}

		if failDesc != "" {
			c.pool.failAsync(req, failDesc, info)
			c.beginPartialClose(failDesc)
			c.drainOnClose(failDesc)
			return
		}
		c.pool.deliverAsync(req, info)

		if idle {
			c.onIdle()
		}
	}
}

// do issues req on the wire and returns either a populated ResponseInfo
// or a non-empty failure description.
func (c *connection) do(ctx context.Context, req *Request) (ResponseInfo, string) {
	hr := httpcli.New(func() *http.Client { return c.client })
	hr.SetUrl(req.URL)
	hr.Method(string(req.Method))
	hr.Header("Host", req.URL.Host)
	hr.Header("Connection", "keep-alive")
	for k, vs := range req.Header {
		for _, v := range vs {
			hr.Header(k, v)
		}
	}
	if len(req.Body) > 0 {
		hr.RequestReader(bytes.NewReader(req.Body))
	}

	rsp, err := hr.Do(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ResponseInfo{URL: req.URL}, "cancelled on shutdown"
		}
		return ResponseInfo{URL: req.URL}, "connection refused: " + err.Error()
	}
	if rsp == nil || rsp.StatusCode == 0 {
		return ResponseInfo{URL: req.URL}, "zero status response"
	}

	defer func() {
		if rsp.Body != nil {
			_ = rsp.Body.Close()
		}
	}()

	body, rerr := io.ReadAll(rsp.Body)
	if rerr != nil {
		return ResponseInfo{URL: req.URL, StatusCode: rsp.StatusCode}, "parse failure: " + rerr.Error()
	}

	return ResponseInfo{
		URL:        req.URL,
		StatusCode: rsp.StatusCode,
		Header:     rsp.Header,
		Body:       body,
	}, ""
}

// onIdle asks the policy how long to wait before closing an emptied
// connection.
func (c *connection) onIdle() {
	if c.policy == nil {
		return
	}
	d := c.policy.WhenCloseConnection(c.id)
	switch {
	case d < 0:
		return
	case d == 0:
		c.beginPartialClose("")
		c.finalize()
	default:
		c.armCloseTimer(d)
	}
}

func (c *connection) armCloseTimer(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pool.planner == nil {
		return
	}
	c.haveTimer = true
	c.closeRef = c.pool.planner.Schedule(time.Now().Add(d), func(context.Context) {
		c.queue.PushCheck()
	})
}

func (c *connection) cancelCloseTimerLocked() {
	if c.haveTimer && c.pool.planner != nil {
		c.pool.planner.Unschedule(c.closeRef)
		c.haveTimer = false
	}
}

// beginPartialClose marks the connection as no longer accepting new
// requests. description is only used for diagnostics; it does not fail
// the in-flight request (the caller does that separately when the cause
// is a transport error rather than voluntary idle close).
func (c *connection) beginPartialClose(description string) {
	if c.terminated.CompareAndSwap(false, true) {
		if c.policy != nil && description != "" {
			c.policy.ReportError(SeverityWarning, "connection "+string(c.id)+": "+description, 0)
		}
	}
}

// finalize stops the pump goroutine voluntarily (the idle-close path);
// the transport-error path instead returns from pump directly.
func (c *connection) finalize() {
	c.closeOnce.Do(func() {
		close(c.closeSig)
	})
}

// drainOnClose hands every still-queued request back to the server's
// resend path and detaches from the reactor. Invoked from the pump
// goroutine's own exit path, so it never races a concurrent dequeue.
func (c *connection) drainOnClose(reason string) {
	c.terminated.Store(true)
	c.mu.Lock()
	c.cancelCloseTimerLocked()
	leftover := c.backlog
	c.backlog = nil
	c.mu.Unlock()

	c.queue.Detach()

	if c.srv != nil {
		c.srv.onConnectionClosed(c, leftover, reason)
	}
	if c.pool != nil && c.pool.eventThreads != nil && c.thread != nil {
		c.pool.eventThreads.onConnectionClosed(c.thread, c.id)
	}
}

// Done reports the pump goroutine's exit, used by Server.Deactivate to
// know when every Connection has fully terminated.
func (c *connection) Done() <-chan struct{} {
	return c.doneCh
}
