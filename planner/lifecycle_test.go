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

package planner_test

import (
	"context"
	"time"

	"github.com/nabbar/corerun/activeobject"
	"github.com/nabbar/corerun/planner"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Lifecycle", func() {
	It("starts NotActive and activates cleanly", func() {
		p := planner.New()
		Expect(p.Active()).To(BeFalse())
		Expect(p.Activate()).ToNot(HaveOccurred())
		Expect(p.Active()).To(BeTrue())
		Expect(p.Deactivate()).ToNot(HaveOccurred())
		Expect(p.Wait()).ToNot(HaveOccurred())
		Expect(p.State()).To(Equal(activeobject.NotActive))
	})

	It("fails with AlreadyActive on double Activate", func() {
		p := planner.New()
		Expect(p.Activate()).ToNot(HaveOccurred())
		defer func() {
			_ = p.Deactivate()
			_ = p.Wait()
		}()

		Expect(p.Activate()).To(HaveOccurred())
	})

	It("is a no-op to Deactivate before Activate", func() {
		p := planner.New()
		Expect(p.Deactivate()).ToNot(HaveOccurred())
	})

	It("allows re-activation after a full cycle", func() {
		p := planner.New()
		Expect(p.Activate()).ToNot(HaveOccurred())
		Expect(p.Deactivate()).ToNot(HaveOccurred())
		Expect(p.Wait()).ToNot(HaveOccurred())

		Expect(p.Activate()).ToNot(HaveOccurred())
		Expect(p.Deactivate()).ToNot(HaveOccurred())
		Expect(p.Wait()).ToNot(HaveOccurred())
	})

	It("delivers a goal scheduled in the past on the next dispatch pass", func() {
		p := planner.New()
		Expect(p.Activate()).ToNot(HaveOccurred())

		done := make(chan struct{})
		p.Schedule(time.Now().Add(-time.Second), func(ctx context.Context) {
			close(done)
		})

		Eventually(done, time.Second).Should(BeClosed())

		Expect(p.Deactivate()).ToNot(HaveOccurred())
		Expect(p.Wait()).ToNot(HaveOccurred())
	})
})
