// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux
// +build linux

// Package fdnotifier contains an epoll-based reactor that reports readiness
// of host file descriptors under caller-chosen tokens.
package fdnotifier

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
	"sigbridge.dev/sigbridge/pkg/waiter"
)

// ErrClosed is returned by operations on a closed Poller.
var ErrClosed = errors.New("poller closed")

// Event is a readiness report for a registered fd.
type Event struct {
	// Token is the value passed to Add for the fd.
	Token uint64
	// FD is the ready file descriptor.
	FD int
	// Mask is the set of ready events.
	Mask waiter.EventMask
}

// Poller is a level-triggered epoll reactor. Add, Remove and Wait may be
// called concurrently.
type Poller struct {
	epfd int

	// mu protects the fields below.
	mu     sync.Mutex
	tokens map[int32]uint64
	closed bool

	// buf is only used by Wait, which serializes on waitMu.
	waitMu sync.Mutex
	buf    []unix.EpollEvent
}

// NewPoller creates a new epoll instance.
func NewPoller() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Poller{
		epfd:   epfd,
		tokens: make(map[int32]uint64),
	}, nil
}

// Add registers fd under token for the events in mask.
func (p *Poller) Add(fd int, token uint64, mask waiter.EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, ok := p.tokens[int32(fd)]; ok {
		return fmt.Errorf("fd %d already registered: %w", fd, unix.EEXIST)
	}
	e := unix.EpollEvent{
		Events: uint32(mask),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &e); err != nil {
		return fmt.Errorf("epoll_ctl(ADD, %d): %w", fd, err)
	}
	p.tokens[int32(fd)] = token
	return nil
}

// AddPollable registers a waiter.Pollable under token for readability.
func (p *Poller) AddPollable(obj waiter.Pollable, token uint64) error {
	return p.Add(obj.FD(), token, waiter.ReadableEvents)
}

// Remove unregisters fd. It must be called before fd is closed.
func (p *Poller) Remove(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if _, ok := p.tokens[int32(fd)]; !ok {
		return fmt.Errorf("fd %d not registered: %w", fd, unix.ENOENT)
	}
	delete(p.tokens, int32(fd))
	// Kernels older than 2.6.9 require a non-NULL event pointer for DEL.
	var e unix.EpollEvent
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, &e); err != nil {
		return fmt.Errorf("epoll_ctl(DEL, %d): %w", fd, err)
	}
	return nil
}

// Wait blocks until at least one registered fd is ready or timeout elapses,
// and fills events. A negative timeout waits forever. Interrupted waits are
// restarted with the same timeout.
func (p *Poller) Wait(timeout time.Duration, events []Event) (int, error) {
	if len(events) == 0 {
		panic("empty events passed to Wait")
	}
	msec := -1
	if timeout >= 0 {
		msec = int(timeout.Milliseconds())
	}

	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	if cap(p.buf) < len(events) {
		p.buf = make([]unix.EpollEvent, len(events))
	}
	buf := p.buf[:len(events)]

	var (
		n   int
		err error
	)
	for {
		n, err = unix.EpollWait(p.epfd, buf, msec)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	out := 0
	for i := 0; i < n; i++ {
		token, ok := p.tokens[buf[i].Fd]
		if !ok {
			// Removed while we were waiting.
			continue
		}
		events[out] = Event{
			Token: token,
			FD:    int(buf[i].Fd),
			Mask:  waiter.EventMask(buf[i].Events),
		}
		out++
	}
	return out, nil
}

// Close releases the epoll instance. Registered fds are not closed.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.epfd)
}
