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

package httppool_test

import (
	"sync"

	"github.com/nabbar/corerun/httppool"
)

// recordingCallback collects every outcome delivered to it, for tests that
// only need to assert what arrived rather than race on a single channel.
type recordingCallback struct {
	mu        sync.Mutex
	responses []httppool.ResponseInfo
	errors    []string
	done      chan struct{}
	once      sync.Once
}

func newRecordingCallback() *recordingCallback {
	return &recordingCallback{done: make(chan struct{})}
}

func (c *recordingCallback) OnResponse(info httppool.ResponseInfo) {
	c.mu.Lock()
	c.responses = append(c.responses, info)
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

func (c *recordingCallback) OnError(description string, info httppool.ResponseInfo) {
	c.mu.Lock()
	c.errors = append(c.errors, description)
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
}

func (c *recordingCallback) QuickOnResponse(info httppool.ResponseInfo) { c.OnResponse(info) }

func (c *recordingCallback) QuickOnError(description string, info httppool.ResponseInfo) {
	c.OnError(description, info)
}

func (c *recordingCallback) Responses() []httppool.ResponseInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]httppool.ResponseInfo, len(c.responses))
	copy(out, c.responses)
	return out
}

func (c *recordingCallback) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.errors))
	copy(out, c.errors)
	return out
}
