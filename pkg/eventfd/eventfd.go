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

// Package eventfd wraps Linux's eventfd(2) syscall for use as a
// self-notifying wake channel.
//
// An Eventfd counts notifications; it is readable while the count is
// non-zero and a single read returns and resets the count. Notify never
// blocks: a saturated counter already means "readable", which is all a
// wake channel needs to convey.
package eventfd

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

const sizeofUint64 = 8

// Eventfd represents a Linux eventfd object.
type Eventfd struct {
	fd int
}

// Create returns an initialized, non-blocking, close-on-exec eventfd.
func Create() (Eventfd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return Eventfd{}, fmt.Errorf("failed to create eventfd: %w", err)
	}
	return Eventfd{fd: fd}, nil
}

// Wrap returns an initialized Eventfd using the provided fd.
func Wrap(fd int) Eventfd {
	return Eventfd{fd: fd}
}

// Close closes the eventfd, after which it should not be used.
func (ev Eventfd) Close() error {
	return unix.Close(ev.fd)
}

// Dup copies the eventfd, calling dup(2) on the underlying file descriptor.
// Both descriptors refer to the same counter.
func (ev Eventfd) Dup() (Eventfd, error) {
	other, err := unix.FcntlInt(uintptr(ev.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return Eventfd{}, fmt.Errorf("failed to dup eventfd %d: %w", ev.fd, err)
	}
	return Eventfd{fd: other}, nil
}

// Notify alerts other users of the eventfd. It does not allocate, does not
// block and treats a saturated counter (EAGAIN) as success.
func (ev Eventfd) Notify() error {
	return ev.Write(1)
}

// Write adds val to the eventfd counter without blocking.
func (ev Eventfd) Write(val uint64) error {
	var buf [sizeofUint64]byte
	binary.NativeEndian.PutUint64(buf[:], val)
	for {
		n, err := nonBlockingWrite(ev.fd, buf[:])
		switch err {
		case nil:
			if n != sizeofUint64 {
				panic(fmt.Sprintf("bad write to eventfd: got %d bytes, wanted %d", n, sizeofUint64))
			}
			return nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return nil
		default:
			return err
		}
	}
}

// Drain reads and resets the counter without blocking. It returns 0 if the
// eventfd was not readable.
func (ev Eventfd) Drain() (uint64, error) {
	var buf [sizeofUint64]byte
	for {
		n, err := nonBlockingRead(ev.fd, buf[:])
		switch err {
		case nil:
			if n != sizeofUint64 {
				panic(fmt.Sprintf("short read from eventfd: got %d bytes, wanted %d", n, sizeofUint64))
			}
			return binary.NativeEndian.Uint64(buf[:]), nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		default:
			return 0, err
		}
	}
}

// Wait blocks until eventfd is non-zero (i.e. someone calls Notify or Write).
func (ev Eventfd) Wait() error {
	_, err := ev.Read()
	return err
}

// Read blocks until eventfd is non-zero (i.e. someone calls Notify or Write)
// and returns the value read.
func (ev Eventfd) Read() (uint64, error) {
	for {
		v, err := ev.Drain()
		if err != nil || v != 0 {
			return v, err
		}
		fds := []unix.PollFd{{Fd: int32(ev.fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, -1); err != nil && err != unix.EINTR {
			return 0, err
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return 0, io.EOF
		}
	}
}

// FD returns the underlying file descriptor. Use with care, as this breaks the
// Eventfd abstraction.
func (ev Eventfd) FD() int {
	return ev.fd
}
