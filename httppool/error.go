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
	"fmt"

	liberr "github.com/nabbar/corerun/errors"
)

// Error codes for the httppool package: lifecycle misuse codes shared with
// every ActiveObject, plus the transport-specific codes a Connection can
// report through a Request's on_error callback.
const (
	ErrorAlreadyActive liberr.CodeError = iota + liberr.MinPkgHttpPool
	ErrorNotActive
	ErrorInvalidArgument
	ErrorOverflow
	ErrorServerNotFound
	ErrorConnectionRefused
	ErrorInvalidAddress
	ErrorBadResponse
	ErrorTimeout
	ErrorCancelledOnShutdown
)

func init() {
	if liberr.ExistInMapMessage(ErrorAlreadyActive) {
		panic(fmt.Errorf("error code collision with package corerun/httppool"))
	}
	liberr.RegisterIdFctMessage(ErrorAlreadyActive, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorAlreadyActive:
		return "httppool: pool is already active"
	case ErrorNotActive:
		return "httppool: pool is not active"
	case ErrorInvalidArgument:
		return "httppool: invalid or missing argument"
	case ErrorOverflow:
		return "httppool: bounded queue full"
	case ErrorServerNotFound:
		return "httppool: no server registered for peer"
	case ErrorConnectionRefused:
		return "httppool: connection refused"
	case ErrorInvalidAddress:
		return "httppool: invalid peer address"
	case ErrorBadResponse:
		return "httppool: malformed or unreadable response"
	case ErrorTimeout:
		return "httppool: request timed out"
	case ErrorCancelledOnShutdown:
		return "httppool: request cancelled on pool shutdown"
	}

	return liberr.NullMessage
}
