//go:build linux

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

package reactor

import (
	"golang.org/x/sys/unix"
)

const maxEpollEvents = 256

// epollPoller is one shard's edge-triggered multiplexer: an epoll instance
// plus an eventfd used as a self-pipe, always a member of the waited set,
// so a goroutine blocked in wait can be interrupted the moment another
// goroutine changes the shard's registration set. Grounded on
// eventloop.FastPoller (poller_linux.go) and its eventfd-based wakeup
// (wakeup_linux.go) from the retrieval pack.
type epollPoller struct {
	epfd   int
	wakeFd int

	events [maxEpollEvents]unix.EpollEvent
}

func newEpollPoller() (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}

	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		_ = unix.Close(epfd)
		return nil, err
	}

	p := &epollPoller{epfd: epfd, wakeFd: wakeFd}

	if err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		_ = unix.Close(wakeFd)
		_ = unix.Close(epfd)
		return nil, err
	}

	return p, nil
}

// add arms fd for edge-triggered read-readiness.
func (p *epollPoller) add(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	})
}

// rearm re-installs fd's interest after a dispatcher re-arms it following
// handle_input's non-negative return.
func (p *epollPoller) rearm(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT,
		Fd:     int32(fd),
	})
}

func (p *epollPoller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait blocks until at least one registered fd is ready or the shard is
// signalled, reporting the ready fds. The wake fd itself is drained and
// never reported. timeoutMs < 0 blocks indefinitely.
func (p *epollPoller) wait(timeoutMs int) (ready []int, err error) {
	n, e := unix.EpollWait(p.epfd, p.events[:], timeoutMs)
	if e != nil {
		if e == unix.EINTR {
			return nil, nil
		}
		return nil, e
	}

	ready = make([]int, 0, n)
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Fd)
		if fd == p.wakeFd {
			p.drainWake()
			continue
		}
		ready = append(ready, fd)
	}

	return ready, nil
}

func (p *epollPoller) drainWake() {
	var buf [8]byte
	for {
		if _, err := unix.Read(p.wakeFd, buf[:]); err != nil {
			return
		}
	}
}

// signal wakes a goroutine blocked in wait, callable from any goroutine.
func (p *epollPoller) signal() {
	buf := [8]byte{1, 0, 0, 0, 0, 0, 0, 0}
	_, _ = unix.Write(p.wakeFd, buf[:])
}

func (p *epollPoller) close() error {
	_ = unix.Close(p.wakeFd)
	return unix.Close(p.epfd)
}
