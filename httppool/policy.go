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
	"time"
)

// ServerID names a peer as "host:port". ConnID and ThreadID name a
// Connection and an EventThread respectively. The zero value of each
// (None) is the sentinel a Policy returns to mean "create a new one".
type ServerID string
type ConnID string
type ThreadID string

// None is the sentinel returned by ChooseConnection/ChooseThread to mean
// "the pool should create a new one".
const None = ""

// ResendVerdict is the policy's answer to RequestsFailed: what to do with
// every request still queued on a Connection that just closed.
type ResendVerdict int

const (
	// CancelAll delivers an error callback to every queued request.
	CancelAll ResendVerdict = iota
	// ResendAll re-enqueues every queued request via Server.AddRequest.
	ResendAll
	// CancelFirstResendOthers errors the head of the queue, resends the rest.
	CancelFirstResendOthers
	// MoreDetailsRequired asks RequestFailed once per queued request.
	MoreDetailsRequired
)

// RequestVerdict is the per-request answer RequestFailed gives when
// RequestsFailed returned MoreDetailsRequired.
type RequestVerdict int

const (
	RequestCancel RequestVerdict = iota
	RequestResend
)

// Severity classifies a report passed to ReportError.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "info"
	}
}

// Admission decides connection and thread reuse. Methods must be
// non-blocking and must not call back into the pool: they are invoked
// under pool-internal locks.
type Admission interface {
	// ChooseThread picks an existing EventThread for a new Connection, or
	// returns None to have the pool create one.
	ChooseThread() ThreadID
	// ChooseConnection picks an existing Connection on server for req, or
	// returns None to have the pool create one.
	ChooseConnection(server ServerID, req *Request) ConnID
	// ExpirationTimeout reports the idle-socket timeout for conn. The pool
	// does not call it: connections keep the idle settings of the default
	// HTTP transport.
	ExpirationTimeout(conn ConnID) time.Duration
}

// Teardown decides when idle Connections and emptied EventThreads close.
// A positive return arms a close timer for that duration and
// re-evaluates on fire; zero closes immediately; negative keeps the
// resource open indefinitely.
type Teardown interface {
	WhenCloseConnection(conn ConnID) time.Duration
	WhenCloseThread(thread ThreadID) time.Duration
}

// Recovery decides what happens to requests still queued on a Connection
// that closed before delivering them.
type Recovery interface {
	RequestsFailed(server ServerID) ResendVerdict
	RequestFailed(server ServerID, req *Request) RequestVerdict
}

// Notification receives lifecycle events for every pool-internal object.
// All hooks are optional in spirit; BasePolicy implements every one as a
// no-op so a concrete Policy can embed it and override only what it needs.
type Notification interface {
	ThreadAdded(ThreadID)
	ThreadRemoved(ThreadID)
	ServerAdded(ServerID)
	ServerRemoved(ServerID)
	ServerConnectionAdded(ServerID, ConnID)
	ServerConnectionRemoved(ServerID, ConnID)
	ThreadConnectionAdded(ThreadID, ConnID)
	ThreadConnectionRemoved(ThreadID, ConnID)
	ConnectionRequestAdded(ConnID)
	ConnectionRequestRemoved(ConnID)
	ServerRequestAdded(ServerID)
	ServerRequestRemoved(ServerID)
	RequestConstructing(*Request)
	RequestDestroying(*Request)
}

// Reporter receives severity-leveled diagnostics that don't concern any
// single Request.
type Reporter interface {
	ReportError(severity Severity, description string, code int)
}

// Policy is the full strategy interface the application implements and
// hands to New. Policies are shared, read-mostly, and safe for concurrent
// use across the pool's lifetime.
type Policy interface {
	Admission
	Teardown
	Recovery
	Notification
	Reporter
}

// BasePolicy implements every Policy method as a no-op / "always create
// new" default. Embed it in a concrete policy and override only the
// methods that concern, exactly as the teacher's callback types default
// to a noopCallback.
type BasePolicy struct {
	// ConnectionIdle is returned by WhenCloseConnection for every
	// connection unless overridden.
	ConnectionIdle time.Duration
	// ThreadIdle is returned by WhenCloseThread for every thread unless
	// overridden.
	ThreadIdle time.Duration
	// Timeout is returned by ExpirationTimeout unless overridden.
	Timeout time.Duration
}

func (BasePolicy) ChooseThread() ThreadID                       { return None }
func (BasePolicy) ChooseConnection(ServerID, *Request) ConnID    { return None }
func (b BasePolicy) ExpirationTimeout(ConnID) time.Duration      { return b.Timeout }
func (b BasePolicy) WhenCloseConnection(ConnID) time.Duration    { return b.ConnectionIdle }
func (b BasePolicy) WhenCloseThread(ThreadID) time.Duration      { return b.ThreadIdle }
func (BasePolicy) RequestsFailed(ServerID) ResendVerdict         { return ResendAll }
func (BasePolicy) RequestFailed(ServerID, *Request) RequestVerdict {
	return RequestResend
}
func (BasePolicy) ThreadAdded(ThreadID)                      {}
func (BasePolicy) ThreadRemoved(ThreadID)                    {}
func (BasePolicy) ServerAdded(ServerID)                      {}
func (BasePolicy) ServerRemoved(ServerID)                     {}
func (BasePolicy) ServerConnectionAdded(ServerID, ConnID)     {}
func (BasePolicy) ServerConnectionRemoved(ServerID, ConnID)   {}
func (BasePolicy) ThreadConnectionAdded(ThreadID, ConnID)     {}
func (BasePolicy) ThreadConnectionRemoved(ThreadID, ConnID)   {}
func (BasePolicy) ConnectionRequestAdded(ConnID)              {}
func (BasePolicy) ConnectionRequestRemoved(ConnID)            {}
func (BasePolicy) ServerRequestAdded(ServerID)                {}
func (BasePolicy) ServerRequestRemoved(ServerID)              {}
func (BasePolicy) RequestConstructing(*Request)               {}
func (BasePolicy) RequestDestroying(*Request)                 {}
func (BasePolicy) ReportError(Severity, string, int)           {}

// NewSimplePolicy returns a BasePolicy configured with the given idle
// timeouts: connIdle bounds how long an emptied Connection stays open
// waiting for new work, threadIdle the same for an emptied EventThread,
// expire the per-connection socket idle timeout. Every request always
// opens a fresh Connection on a newly created EventThread, and every
// closed Connection's backlog is resent.
func NewSimplePolicy(connIdle, threadIdle, expire time.Duration) Policy {
	return BasePolicy{
		ConnectionIdle: connIdle,
		ThreadIdle:     threadIdle,
		Timeout:        expire,
	}
}
