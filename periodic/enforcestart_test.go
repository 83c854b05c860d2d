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

package periodic_test

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nabbar/corerun/periodic"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EnforceStart", func() {
	It("interrupts the sleep and runs the task forced", func() {
		r := periodic.New()
		Expect(r.Activate()).ToNot(HaveOccurred())
		defer func() {
			_ = r.Deactivate()
			_ = r.Wait()
		}()

		var forcedSeen int32
		ref := r.AddTask(time.Hour, func(ctx context.Context, forced bool) {
			if forced {
				atomic.AddInt32(&forcedSeen, 1)
			}
		}, periodic.RunOnSchedule)

		r.EnforceStart(ref)

		Eventually(func() int32 {
			return atomic.LoadInt32(&forcedSeen)
		}, time.Second).Should(Equal(int32(1)))
	})

	It("is a no-op for an unknown ref", func() {
		r := periodic.New()
		Expect(r.Activate()).ToNot(HaveOccurred())
		defer func() {
			_ = r.Deactivate()
			_ = r.Wait()
		}()

		Expect(func() { r.EnforceStart(periodic.TaskRef(999)) }).ToNot(Panic())
	})
})

var _ = Describe("Errors", func() {
	It("recovers a panicking task and keeps the loop alive", func() {
		r := periodic.New()
		Expect(r.Activate()).ToNot(HaveOccurred())
		defer func() {
			_ = r.Deactivate()
			_ = r.Wait()
		}()

		var n int32
		r.AddTask(30*time.Millisecond, func(ctx context.Context, forced bool) {
			atomic.AddInt32(&n, 1)
			panic("boom")
		}, periodic.RunImmediately)

		Eventually(func() int32 {
			return atomic.LoadInt32(&n)
		}, time.Second).Should(BeNumerically(">=", 2))
	})
})
