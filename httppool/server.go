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

	liberr "github.com/nabbar/corerun/errors"
)

// server aggregates every Connection this process currently holds open to
// one host:port. Removed from the
// pool only after every Connection has terminated.
type server struct {
	id     ServerID
	pool   *pool
	policy Policy

	mu           sync.Mutex
	conns        map[ConnID]*connection
	deactivating bool
	drainWG      sync.WaitGroup

	nextConn atomic.Uint64
}

// newServer constructs a server without notifying the policy. The caller
// is responsible for calling ServerAdded exactly once, after it has won
// the registry's LoadOrStore race (see pool.findOrCreateServer). The
// policy's add/remove notifications are one-shot, mirroring the single
// ServerRemoved call site on actual teardown.
func newServer(id ServerID, p *pool) *server {
	return &server{
		id:     id,
		pool:   p,
		policy: p.policy,
		conns:  make(map[ConnID]*connection),
	}
}

// AddRequest is Server::add_request: ask the policy which connection (if
// any) should carry req, otherwise open a new one on a thread chosen by
// the same policy, then push req onto that connection's FIFO.
func (s *server) AddRequest(req *Request) liberr.Error {
	s.mu.Lock()
	if s.deactivating {
		s.mu.Unlock()
		return ErrorCancelledOnShutdown.Error()
	}

	var target *connection
	if s.policy != nil {
		if cid := s.policy.ChooseConnection(s.id, req); cid != None {
			target = s.conns[cid]
		}
	}

	if target == nil {
		id := ConnID(fmt.Sprintf("%s#%d", s.id, s.nextConn.Add(1)))
		th := s.pool.eventThreads.choose(s.policy)
		target = newConnection(id, string(s.id), s.pool, s, th)
		s.conns[id] = target
		s.drainWG.Add(1)
		th.trackConnection(id, s.pool.planner)

		if s.policy != nil {
			s.policy.ServerConnectionAdded(s.id, id)
			s.policy.ThreadConnectionAdded(th.id, id)
		}

		target.attach(s.pool.runCtx())
		go s.watchConnection(target)
	}
	s.mu.Unlock()

	if s.policy != nil {
		s.policy.ConnectionRequestAdded(target.id)
		s.policy.ServerRequestAdded(s.id)
	}

	if !target.Enqueue(req) {
		// the chosen connection finished closing between the lookup and
		// the push; resend once through a freshly chosen connection.
		s.AddRequest(req)
		return nil
	}

	return nil
}

// watchConnection releases the drain WaitGroup exactly once a Connection's
// pump goroutine has fully exited.
func (s *server) watchConnection(c *connection) {
	<-c.Done()
	s.drainWG.Done()
}

// onConnectionClosed removes c from the server's set and routes its
// undelivered backlog through the Recovery policy. Invoked from c's own pump goroutine at exit.
func (s *server) onConnectionClosed(c *connection, leftover []*Request, _ string) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	if s.policy != nil {
		s.policy.ServerConnectionRemoved(s.id, c.id)
		s.policy.ThreadConnectionRemoved(c.thread.id, c.id)
	}

	if len(leftover) == 0 {
		return
	}

	verdict := ResendAll
	if s.policy != nil {
		verdict = s.policy.RequestsFailed(s.id)
	}

	switch verdict {
	case CancelAll:
		for _, r := range leftover {
			s.failCancelled(r)
		}
	case ResendAll:
		for _, r := range leftover {
			_ = s.AddRequest(r)
		}
	case CancelFirstResendOthers:
		for i, r := range leftover {
			if i == 0 {
				s.failCancelled(r)
			} else {
				_ = s.AddRequest(r)
			}
		}
	case MoreDetailsRequired:
		for _, r := range leftover {
			rv := RequestResend
			if s.policy != nil {
				rv = s.policy.RequestFailed(s.id, r)
			}
			if rv == RequestCancel {
				s.failCancelled(r)
			} else {
				_ = s.AddRequest(r)
			}
		}
	}
}

func (s *server) failCancelled(r *Request) {
	s.pool.failAsync(r, "cancelled on shutdown", ResponseInfo{URL: r.URL})
}

// Deactivate marks the server as draining, closes every Connection and
// blocks until all have terminated, then removes itself from the pool's
// server map.
func (s *server) Deactivate(ctx context.Context) {
	s.mu.Lock()
	s.deactivating = true
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.finalize()
	}

	s.drainWG.Wait()

	s.pool.removeServer(s.id)

	if s.policy != nil {
		s.policy.ServerRemoved(s.id)
	}
}
