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

package httpcli

import (
	"fmt"

	liberr "github.com/nabbar/corerun/errors"
)

// Error codes for HTTP client operations.
const (
	ErrorParamsInvalid liberr.CodeError = iota + liberr.MinPkgHttpCli // At least one given parameter is empty or invalid
	ErrorValidatorError                                               // Configuration validation failed
	ErrorClientTransportHttp2                                         // HTTP/2 transport configuration error
	ErrorCreateRequest                                                // Error building the outgoing http.Request
	ErrorSendRequest                                                  // Error performing the http.Request
	ErrorResponseInvalid                                              // Response object is nil or malformed
	ErrorResponseStatus                                               // Response status code outside the accepted set
	ErrorResponseLoadBody                                             // Error reading the response body
	ErrorResponseUnmarshall                                           // Error unmarshalling the response body
)

func init() {
	if liberr.ExistInMapMessage(ErrorParamsInvalid) {
		panic(fmt.Errorf("error code collision with package corerun/httpcli"))
	}
	liberr.RegisterIdFctMessage(ErrorParamsInvalid, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorParamsInvalid:
		return "at least one given parameters is empty or invalid"
	case ErrorValidatorError:
		return "config seems to be invalid"
	case ErrorClientTransportHttp2:
		return "error while configure http2 transport for client"
	case ErrorCreateRequest:
		return "error on creating a new http request"
	case ErrorSendRequest:
		return "error on sending a http request"
	case ErrorResponseInvalid:
		return "http response is invalid"
	case ErrorResponseStatus:
		return "http response status code is not accepted"
	case ErrorResponseLoadBody:
		return "error on reading http response body"
	case ErrorResponseUnmarshall:
		return "error on unmarshalling http response body"
	}

	return liberr.NullMessage
}
